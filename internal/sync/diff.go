package sync

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// dmp wraps the diff-match-patch primitives the sync engine requires. A
// single package-level instance is reused across requests —
// diffmatchpatch.DiffMatchPatch carries only tuning parameters, never
// request state, so sharing it is safe under concurrent use.
var dmp = diffmatchpatch.New()

// expandDelta turns a compact delta back into a diff sequence against the
// text the client's shadow was built from. An error here means the client's
// shadow has diverged from what the server expects; the caller should fall
// back to a raw resync.
func expandDelta(shadow, delta string) ([]diffmatchpatch.Diff, error) {
	diffs, err := dmp.DiffFromDelta(shadow, delta)
	if err != nil {
		return nil, err
	}
	return diffs, nil
}

// diffText2 is the post-image of a diff sequence: what the client now has.
func diffText2(diffs []diffmatchpatch.Diff) string {
	return dmp.DiffText2(diffs)
}

// hasRealChange reports whether diffs contains anything other than a single
// DiffEqual hunk — used to decide whether a forced delta actually changes
// anything.
func hasRealChange(diffs []diffmatchpatch.Diff) bool {
	if len(diffs) == 0 {
		return false
	}
	if len(diffs) == 1 && diffs[0].Type == diffmatchpatch.DiffEqual {
		return false
	}
	return true
}

// applyPatches patches master with the diffs computed against oldShadow,
// best-effort: per-hunk failures are tolerated and the merged result is
// still returned, with per-hunk success reported in results. applyDelta
// discards results and does not log them.
func applyPatches(oldShadow string, diffs []diffmatchpatch.Diff, master string) (merged string, results []bool) {
	patches := dmp.PatchMake(oldShadow, diffs)
	merged, results = dmp.PatchApply(patches, master)
	return merged, results
}

// outboundDelta computes the delta the server should send the client to
// bring it from `from` to `to`.
func outboundDelta(from, to string) string {
	diffs := dmp.DiffMain(from, to, false)
	diffs = dmp.DiffCleanupEfficiency(diffs)
	return dmp.DiffToDelta(diffs)
}
