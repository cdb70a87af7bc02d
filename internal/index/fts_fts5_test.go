//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"
)

func TestFTSSearch_MatchAndSnippet(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{
		Path: "a.md", Checksum: "c1", Title: "Gardening",
		Content: "Tomatoes need regular watering during summer months.",
	})
	mustIndex(t, db, NoteUpdate{
		Path: "b.md", Checksum: "c2", Title: "Cooking",
		Content: "Pasta sauce starts with good tomatoes and garlic.",
	})

	results, err := db.Search("tomatoes", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2 hits", results)
	}
	for _, r := range results {
		if !strings.Contains(strings.ToLower(r.Highlight), "<b>tomatoes</b>") {
			t.Errorf("highlight %q missing marked match", r.Highlight)
		}
	}
}

func TestFTSSearch_RawSyntaxIsLiteral(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c1", Content: "plain text"})

	// Operators and stray quotes must be treated as literal tokens, not
	// FTS5 syntax.
	for _, q := range []string{`"unbalanced`, `NEAR(`, `a AND`, `col:val`} {
		if _, err := db.Search(q, 10); err != nil {
			t.Errorf("Search(%q) errored: %v", q, err)
		}
	}
}

func TestFTSSearch_ReplacedContentNotMatched(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c1", Content: "obsolete term"})
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c2", Content: "fresh term"})

	if results, _ := db.Search("obsolete", 10); len(results) != 0 {
		t.Errorf("stale search record matched: %+v", results)
	}
	results, err := db.Search("fresh", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("results = %+v", results)
	}
}

func TestFTSSearch_DeleteRemovesRecord(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c1", Content: "unique needle"})
	if err := db.DeleteFile("a.md"); err != nil {
		t.Fatal(err)
	}
	if results, _ := db.Search("needle", 10); len(results) != 0 {
		t.Errorf("deleted note still matched: %+v", results)
	}
}

func TestFTSQuery_Quoting(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  ", ""},
		{"hello", `"hello"`},
		{"hello world", `"hello" "world"`},
		{`say "hi"`, `"say" """hi"""`},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.in); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
