package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ehrlich-b/wingthing/internal/sync"
)

// encodeEditStack serializes an edit stack as a sequence of
// "<version> <byte-length> <line-bytes>" records. Length-prefixing (rather
// than newline-delimiting) survives raw-dump lines that themselves embed
// newlines.
func encodeEditStack(stack []sync.EditEntry) string {
	var b strings.Builder
	for _, e := range stack {
		fmt.Fprintf(&b, "%d %d %s", e.ServerVersion, len(e.Line), e.Line)
	}
	return b.String()
}

// encodeSlots serializes a buffer's slot array the same length-prefixed way
// as encodeEditStack, since a slot's text is arbitrary client input and may
// contain any byte sequence.
func encodeSlots(slots []string) string {
	var b strings.Builder
	for _, slot := range slots {
		fmt.Fprintf(&b, "%d %s", len(slot), slot)
	}
	return b.String()
}

// decodeSlots reverses encodeSlots, expecting exactly n slots.
func decodeSlots(raw string, n int) ([]string, error) {
	slots := make([]string, 0, n)
	for len(raw) > 0 {
		sp := strings.IndexByte(raw, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("slots: missing length separator")
		}
		length, err := strconv.Atoi(raw[:sp])
		if err != nil {
			return nil, fmt.Errorf("slots: bad length: %w", err)
		}
		raw = raw[sp+1:]
		if len(raw) < length {
			return nil, fmt.Errorf("slots: truncated entry: want %d bytes, have %d", length, len(raw))
		}
		slots = append(slots, raw[:length])
		raw = raw[length:]
	}
	for len(slots) < n {
		slots = append(slots, "")
	}
	return slots, nil
}

// decodeEditStack reverses encodeEditStack.
func decodeEditStack(raw string) ([]sync.EditEntry, error) {
	var stack []sync.EditEntry
	for len(raw) > 0 {
		sp := strings.IndexByte(raw, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("editstack: missing version separator")
		}
		version, err := strconv.Atoi(raw[:sp])
		if err != nil {
			return nil, fmt.Errorf("editstack: bad version: %w", err)
		}
		raw = raw[sp+1:]

		sp = strings.IndexByte(raw, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("editstack: missing length separator")
		}
		length, err := strconv.Atoi(raw[:sp])
		if err != nil {
			return nil, fmt.Errorf("editstack: bad length: %w", err)
		}
		raw = raw[sp+1:]

		if len(raw) < length {
			return nil, fmt.Errorf("editstack: truncated entry: want %d bytes, have %d", length, len(raw))
		}
		line := raw[:length]
		raw = raw[length:]

		stack = append(stack, sync.EditEntry{ServerVersion: version, Line: line})
	}
	return stack, nil
}
