package main

import "testing"

func TestVersionCommandPrintsVersion(t *testing.T) {
	cmd := versionCmd()
	if cmd.Use != "version" {
		t.Errorf("Use = %q, want version", cmd.Use)
	}
	if cmd.RunE == nil {
		t.Fatal("expected RunE to be set")
	}
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Errorf("RunE: %v", err)
	}
}

func TestServeCmdHasConfigAwareRunE(t *testing.T) {
	cmd := serveCmd()
	if cmd.Use != "serve" {
		t.Errorf("Use = %q, want serve", cmd.Use)
	}
	if cmd.RunE == nil {
		t.Fatal("expected RunE to be set")
	}
}

func TestCleanCmd(t *testing.T) {
	cmd := cleanCmd()
	if cmd.Use != "clean" {
		t.Errorf("Use = %q, want clean", cmd.Use)
	}
	if cmd.RunE == nil {
		t.Fatal("expected RunE to be set")
	}
}
