package expansion

import "testing"

func TestMatchIsDeterministic(t *testing.T) {
	dict := DefaultDictionary()

	first, seed, ok := dict.Match("react developer in lagos")
	if !ok {
		t.Fatal("expected dictionary hit for 'react developer in lagos'")
	}
	if seed != "react developer" {
		t.Errorf("seed = %q, want %q", seed, "react developer")
	}

	for i := 0; i < 50; i++ {
		entry, s, ok := dict.Match("react developer in lagos")
		if !ok || s != seed {
			t.Fatalf("run %d: match diverged, seed %q", i, s)
		}
		if len(entry.Includes) != len(first.Includes) || entry.Includes[0] != first.Includes[0] {
			t.Fatalf("run %d: entry diverged", i)
		}
	}
}

func TestMatchPrefersLongestSeed(t *testing.T) {
	dict := NewMapMatcher(map[string]Entry{
		"developer":       {Includes: []string{"generic"}},
		"react developer": {Includes: []string{"react"}},
	})

	entry, seed, ok := dict.Match("senior react developer")
	if !ok {
		t.Fatal("expected a match")
	}
	if seed != "react developer" {
		t.Errorf("seed = %q, want longest seed %q", seed, "react developer")
	}
	if entry.Includes[0] != "react" {
		t.Errorf("entry = %v, want react entry", entry.Includes)
	}
}

func TestMatchTieBreaksLexicographically(t *testing.T) {
	dict := NewMapMatcher(map[string]Entry{
		"abc x": {Includes: []string{"first"}},
		"x abc": {Includes: []string{"second"}},
	})

	// Both seeds are contained and equally long; the smaller one wins.
	for i := 0; i < 20; i++ {
		entry, seed, ok := dict.Match("abc x abc")
		if !ok {
			t.Fatal("expected a match")
		}
		if seed != "abc x" {
			t.Fatalf("run %d: seed = %q, want %q", i, seed, "abc x")
		}
		if entry.Includes[0] != "first" {
			t.Fatalf("run %d: wrong entry", i)
		}
	}
}

func TestMatchNormalizesQuery(t *testing.T) {
	dict := DefaultDictionary()

	_, seed, ok := dict.Match("  REACT   Developer ")
	if !ok {
		t.Fatal("expected match on denormalized query")
	}
	if seed != "react developer" {
		t.Errorf("seed = %q, want %q", seed, "react developer")
	}
}

func TestMatchMissReturnsFalse(t *testing.T) {
	dict := DefaultDictionary()

	if _, _, ok := dict.Match("underwater basket weaver"); ok {
		t.Error("expected no match for unknown query")
	}
}

func TestReactDeveloperExcludesJava(t *testing.T) {
	dict := DefaultDictionary()

	entry, _, ok := dict.Match("react developer")
	if !ok {
		t.Fatal("expected match")
	}

	found := false
	for _, term := range entry.Excludes {
		if term == "java" {
			found = true
		}
	}
	if !found {
		t.Errorf("react developer excludes = %v, want to contain %q", entry.Excludes, "java")
	}
}
