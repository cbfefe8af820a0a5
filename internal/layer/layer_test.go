package layer

import "testing"

func TestResolveSymbolPrecedenceWorkingFirst(t *testing.T) {
	idx := NewLayeredIndex()
	idx.Base.Put("h1", SymbolState{File: "base.go", Status: StatusActive})
	idx.Working.Put("h1", SymbolState{File: "working.go", Status: StatusActive})

	state, ok := idx.ResolveSymbol("h1")
	if !ok {
		t.Fatal("expected symbol to resolve")
	}
	if state.File != "working.go" {
		t.Errorf("File = %q, want working.go (Working should win over Base)", state.File)
	}
}

func TestResolveSymbolTombstoneShortCircuitsToNotFound(t *testing.T) {
	idx := NewLayeredIndex()
	idx.Base.Put("h1", SymbolState{File: "base.go", Status: StatusActive})
	idx.Working.Tombstone("h1", 100)

	_, ok := idx.ResolveSymbol("h1")
	if ok {
		t.Error("a Working tombstone must short-circuit resolution to not-found, even though Base has an Active entry")
	}
}

func TestResolveSymbolFollowsMoveWithinLayer(t *testing.T) {
	idx := NewLayeredIndex()
	idx.Working.Put("old", SymbolState{Status: StatusMoved, MovedTo: "new"})
	idx.Working.Put("new", SymbolState{File: "renamed.go", Status: StatusActive})

	state, ok := idx.ResolveSymbol("old")
	if !ok || state.File != "renamed.go" {
		t.Errorf("ResolveSymbol(old) = %+v, ok=%v, want renamed.go", state, ok)
	}
}

func TestResolveSymbolMoveCycleIsNotFound(t *testing.T) {
	idx := NewLayeredIndex()
	idx.Working.Put("a", SymbolState{Status: StatusMoved, MovedTo: "b"})
	idx.Working.Put("b", SymbolState{Status: StatusMoved, MovedTo: "a"})

	if _, ok := idx.ResolveSymbol("a"); ok {
		t.Error("a move cycle must resolve to not-found")
	}
}

func TestMergedViewExcludesDeleted(t *testing.T) {
	idx := NewLayeredIndex()
	idx.Base.Put("h1", SymbolState{File: "a.go", Status: StatusActive})
	idx.Base.Put("h2", SymbolState{File: "b.go", Status: StatusActive})
	idx.Working.Tombstone("h2", 1)

	merged := idx.MergedView()
	if _, ok := merged["h1"]; !ok {
		t.Error("expected h1 in merged view")
	}
	if _, ok := merged["h2"]; ok {
		t.Error("expected h2 to be excluded (tombstoned in Working)")
	}
}

func TestStatsCountsPerLayer(t *testing.T) {
	idx := NewLayeredIndex()
	idx.Base.Put("h1", SymbolState{Status: StatusActive})
	idx.Branch.Put("h2", SymbolState{Status: StatusActive})
	idx.Working.Put("h3", SymbolState{Status: StatusActive})

	stats := idx.Stats()
	if stats.BaseCount != 1 || stats.BranchCount != 1 || stats.WorkingCount != 1 {
		t.Errorf("stats = %+v, want 1 each", stats)
	}
	if stats.MergedCount != 3 {
		t.Errorf("MergedCount = %d, want 3", stats.MergedCount)
	}
}

func TestClearAIEmptiesOnly(t *testing.T) {
	idx := NewLayeredIndex()
	idx.AI.Put("h1", SymbolState{Status: StatusActive})
	idx.Base.Put("h2", SymbolState{Status: StatusActive})

	idx.ClearAI()

	if len(idx.AI.States) != 0 {
		t.Error("expected AI layer to be emptied")
	}
	if len(idx.Base.States) != 1 {
		t.Error("ClearAI must not touch Base")
	}
}

func TestSortedHashesDeterministic(t *testing.T) {
	l := NewLayer()
	l.Put("b", SymbolState{})
	l.Put("a", SymbolState{})
	l.Put("c", SymbolState{})

	got := l.SortedHashes()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SortedHashes = %v, want %v", got, want)
		}
	}
}
