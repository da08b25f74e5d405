package mru

import (
	"testing"

	"pgregory.net/rapid"
)

// ============================================================================
// Property-Based Tests for MRU Invariants
// ============================================================================

// branchNameGen draws branch names, sometimes fully qualified, so that
// normalization collisions actually occur.
func branchNameGen() *rapid.Generator[string] {
	short := rapid.SampledFrom([]string{
		"main", "develop", "feature-x", "feature-y", "release-1",
		"team/auth", "team/billing", "hotfix.2", "wip_spike",
	})
	return rapid.Custom(func(t *rapid.T) string {
		name := short.Draw(t, "short")
		switch rapid.IntRange(0, 2).Draw(t, "prefix") {
		case 1:
			return "refs/heads/" + name
		case 2:
			return "heads/" + name
		default:
			return name
		}
	})
}

// TestProperty_NoDuplicatesAndBounded verifies that any visit sequence leaves
// the list duplicate-free and within MaxStored.
func TestProperty_NoDuplicatesAndBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newTestStore()
		visits := rapid.SliceOfN(branchNameGen(), 1, 100).Draw(t, "visits")
		for _, v := range visits {
			if err := s.RecordVisit("/repo", v); err != nil {
				t.Fatalf("RecordVisit failed: %v", err)
			}
		}

		got, err := s.Ordered("/repo")
		if err != nil {
			t.Fatalf("Ordered failed: %v", err)
		}
		if len(got) > MaxStored {
			t.Errorf("list has %d entries, max is %d", len(got), MaxStored)
		}

		seen := make(map[string]struct{}, len(got))
		for _, name := range got {
			if name != Normalize(name) {
				t.Errorf("stored name %q is not normalized", name)
			}
			if _, dup := seen[name]; dup {
				t.Errorf("duplicate entry %q", name)
			}
			seen[name] = struct{}{}
		}
	})
}

// TestProperty_MostRecentVisitIsFirst verifies the last recorded name always
// heads the list.
func TestProperty_MostRecentVisitIsFirst(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newTestStore()
		visits := rapid.SliceOfN(branchNameGen(), 1, 50).Draw(t, "visits")
		for _, v := range visits {
			if err := s.RecordVisit("/repo", v); err != nil {
				t.Fatalf("RecordVisit failed: %v", err)
			}
		}

		got, err := s.Ordered("/repo")
		if err != nil {
			t.Fatalf("Ordered failed: %v", err)
		}
		if len(got) == 0 {
			t.Fatal("expected at least one entry")
		}
		want := Normalize(visits[len(visits)-1])
		if got[0] != want {
			t.Errorf("head of list is %q, want %q", got[0], want)
		}
	})
}
