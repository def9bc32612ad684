package sync

import (
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

func TestOutboundDeltaAndExpandDeltaRoundTrip(t *testing.T) {
	from := "Hello World"
	to := "Hello Cruel World"

	delta := outboundDelta(from, to)
	diffs, err := expandDelta(from, delta)
	if err != nil {
		t.Fatalf("expandDelta: %v", err)
	}

	got := diffText2(diffs)
	if got != to {
		t.Errorf("diffText2 after round trip = %q, want %q", got, to)
	}
}

func TestHasRealChangeFalseOnIdentical(t *testing.T) {
	diffs := []diffmatchpatch.Diff{{Type: diffmatchpatch.DiffEqual, Text: "same"}}
	if hasRealChange(diffs) {
		t.Error("expected no real change for a single equal hunk")
	}
}

func TestHasRealChangeFalseOnEmpty(t *testing.T) {
	if hasRealChange(nil) {
		t.Error("expected no real change for an empty diff sequence")
	}
}

func TestHasRealChangeTrueOnEdit(t *testing.T) {
	dmpLocal := diffmatchpatch.New()
	diffs := dmpLocal.DiffMain("hello", "hellothere", false)
	if !hasRealChange(diffs) {
		t.Error("expected a real change when text was appended")
	}
}

func TestApplyPatchesMergesCleanEdit(t *testing.T) {
	oldShadow := "The quick fox"
	newShadow := "The quick brown fox"
	diffs := dmp.DiffMain(oldShadow, newShadow, false)

	merged, results := applyPatches(oldShadow, diffs, "The quick fox jumps")
	for i, ok := range results {
		if !ok {
			t.Errorf("patch hunk %d failed to apply", i)
		}
	}
	want := "The quick brown fox jumps"
	if merged != want {
		t.Errorf("merged = %q, want %q", merged, want)
	}
}

func TestApplyPatchesToleratesDivergedMaster(t *testing.T) {
	oldShadow := "abc"
	newShadow := "abcd"
	diffs := dmp.DiffMain(oldShadow, newShadow, false)

	// master has nothing in common with oldShadow; some hunks may fail to
	// apply, but the call must not panic and must still return a result.
	merged, results := applyPatches(oldShadow, diffs, "completely different text")
	if len(results) == 0 {
		t.Fatal("expected at least one patch result")
	}
	_ = merged
}
