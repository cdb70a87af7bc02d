package index

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/models"
)

// testDB opens a fresh database file under t.TempDir.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustIndex(t *testing.T, db *DB, n NoteUpdate) {
	t.Helper()
	if _, err := db.IndexNote(n); err != nil {
		t.Fatalf("IndexNote(%s): %v", n.Path, err)
	}
}

func TestIndexNote_InsertAndNoop(t *testing.T) {
	db := testDB(t)

	changed, err := db.IndexNote(NoteUpdate{Path: "a.md", Checksum: "c1", Title: "A", Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("first index should report changed")
	}

	changed, err = db.IndexNote(NoteUpdate{Path: "a.md", Checksum: "c1", Title: "A", Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("same checksum should be a no-op")
	}
}

func TestIndexNote_UpdateReplacesDerivedRows(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{
		Path: "a.md", Checksum: "c1", Title: "A", Content: "old words",
		Links: []string{"b", "c"},
		Todos: []models.Todo{{Content: "old task"}},
	})
	mustIndex(t, db, NoteUpdate{
		Path: "a.md", Checksum: "c2", Title: "A2", Content: "new words",
		Links: []string{"b"},
		Todos: []models.Todo{{Content: "first"}, {Content: "second", Completed: true}},
	})

	links, err := db.allLinks()
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].target != "b" {
		t.Errorf("links = %+v, want single link to b", links)
	}

	tasks, err := db.AllTasks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks = %+v", tasks)
	}
	if tasks[0].Content != "first" || tasks[1].Content != "second" || !tasks[1].Completed {
		t.Errorf("task order/content wrong: %+v", tasks)
	}
	if tasks[0].FileTitle != "A2" {
		t.Errorf("task title = %q, want updated title", tasks[0].FileTitle)
	}

	results, err := db.Search("new", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Title != "A2" {
		t.Errorf("search after update = %+v", results)
	}
	if results, _ := db.Search("old", 10); len(results) != 0 {
		t.Errorf("stale search record survived: %+v", results)
	}
}

func TestDeleteFile_RemovesAllDerivedRows(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{
		Path: "a.md", Checksum: "c1", Title: "A", Content: "findme",
		Links:  []string{"b"},
		Todos:  []models.Todo{{Content: "task"}},
		Vector: []float32{1, 0},
	})

	if err := db.DeleteFile("a.md"); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := db.FileID("a.md"); ok {
		t.Error("file row survived delete")
	}
	if results, _ := db.Search("findme", 10); len(results) != 0 {
		t.Errorf("search record survived delete: %+v", results)
	}
	if tasks, _ := db.AllTasks(); len(tasks) != 0 {
		t.Errorf("todos survived delete: %+v", tasks)
	}
	if links, _ := db.allLinks(); len(links) != 0 {
		t.Errorf("links survived delete: %+v", links)
	}
	if embs, _ := db.allEmbeddings(); len(embs) != 0 {
		t.Errorf("embedding survived delete: %+v", embs)
	}
}

func TestDeleteFile_UnknownPathIsNoop(t *testing.T) {
	db := testDB(t)
	if err := db.DeleteFile("nope.md"); err != nil {
		t.Fatal(err)
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c1"})
	mustIndex(t, db, NoteUpdate{Path: "b.md", Checksum: "c2"})

	sums, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 2 || sums["a.md"] != "c1" || sums["b.md"] != "c2" {
		t.Errorf("sums = %v", sums)
	}
}

func TestIndexNote_NilVectorClearsEmbedding(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c1", Vector: []float32{1, 0}})
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c2"})

	embs, err := db.allEmbeddings()
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 0 {
		t.Errorf("stale embedding kept after reindex without vector: %+v", embs)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c1", Content: "text"})

	results, err := db.Search("  ", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty query should match nothing, got %+v", results)
	}
}

func TestSearch_HighlightMarksMatch(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{
		Path: "a.md", Checksum: "c1", Title: "Note",
		Content: strings.Repeat("pad ", 40) + "the keyword sits here " + strings.Repeat("pad ", 40),
	})

	results, err := db.Search("keyword", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}
	if !strings.Contains(results[0].Highlight, "<b>keyword</b>") {
		t.Errorf("highlight = %q, want marked match", results[0].Highlight)
	}
}

func TestOpen_LegacySchemaRebuilt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	// A database from before schema versioning: a files table with an
	// incompatible shape and no schema_version record.
	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := raw.Exec(`CREATE TABLE files (path TEXT PRIMARY KEY, title TEXT)`); err != nil {
		t.Fatal(err)
	}
	if err := raw.Close(); err != nil {
		t.Fatal(err)
	}

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	changed, err := db.IndexNote(NoteUpdate{Path: "a.md", Checksum: "c1", Title: "A", Content: "text"})
	if err != nil {
		t.Fatalf("write after legacy rebuild: %v", err)
	}
	if !changed {
		t.Error("expected insert into rebuilt schema")
	}
	sums, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if sums["a.md"] != "c1" {
		t.Errorf("sums = %v", sums)
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c1"})
	db.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
	sums, err := db2.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if sums["a.md"] != "c1" {
		t.Errorf("data lost across reopen: %v", sums)
	}
}
