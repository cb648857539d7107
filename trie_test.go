package rdns

import "testing"

func mustMatch(t *testing.T, trie *StringTrie[string], name, want string) {
	t.Helper()
	got, ok := trie.Search(name)
	if !ok {
		t.Fatalf("Search(%q): no match, want %q", name, want)
	}
	if got != want {
		t.Fatalf("Search(%q) = %q, want %q", name, got, want)
	}
}

func mustNoMatch(t *testing.T, trie *StringTrie[string], name string) {
	t.Helper()
	if got, ok := trie.Search(name); ok {
		t.Fatalf("Search(%q) = %q, want no match", name, got)
	}
}

func TestStringTrieExact(t *testing.T) {
	tr := NewStringTrie[string]()
	tr.Insert("example.com", "exact")
	mustMatch(t, tr, "example.com", "exact")
	mustMatch(t, tr, "EXAMPLE.COM.", "exact")
	mustNoMatch(t, tr, "sub.example.com")
	mustNoMatch(t, tr, "other.com")
}

func TestStringTrieWildcard(t *testing.T) {
	tr := NewStringTrie[string]()
	tr.Insert("*.example.com", "wild")
	mustMatch(t, tr, "sub.example.com", "wild")
	mustNoMatch(t, tr, "example.com")
	mustNoMatch(t, tr, "a.sub.example.com")
}

func TestStringTriePlusPrefix(t *testing.T) {
	tr := NewStringTrie[string]()
	tr.Insert("+.example.com", "plus")
	mustMatch(t, tr, "example.com", "plus")
	mustMatch(t, tr, "sub.example.com", "plus")
	mustMatch(t, tr, "a.b.sub.example.com", "plus")
	mustNoMatch(t, tr, "notexample.com")
}

func TestStringTrieLongestMatchWins(t *testing.T) {
	tr := NewStringTrie[string]()
	tr.Insert("+.example.com", "outer")
	tr.Insert("+.sub.example.com", "inner")
	mustMatch(t, tr, "sub.example.com", "inner")
	mustMatch(t, tr, "a.sub.example.com", "inner")
	mustMatch(t, tr, "other.example.com", "outer")
}

func TestStringTrieExactBeatsWildcardBeatsPlus(t *testing.T) {
	tr := NewStringTrie[string]()
	tr.Insert("+.example.com", "plus")
	tr.Insert("*.example.com", "wild")
	tr.Insert("a.example.com", "exact")
	mustMatch(t, tr, "a.example.com", "exact")
	mustMatch(t, tr, "b.example.com", "wild")
	mustMatch(t, tr, "example.com", "plus")
	mustMatch(t, tr, "c.b.example.com", "plus")
}

func TestStringTrieCaseInsensitive(t *testing.T) {
	tr := NewStringTrie[string]()
	tr.Insert("Example.COM", "v")
	mustMatch(t, tr, "example.com", "v")
	mustMatch(t, tr, "EXAMPLE.com", "v")
}
