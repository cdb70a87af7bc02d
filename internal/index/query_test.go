package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/models"
)

func TestGraph_GhostNode(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{
		Path: "a.md", Checksum: "c1", Title: "A",
		Links: []string{"Missing"},
	})

	nodes, edges, err := db.Graph(nil)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Len(t, edges, 1)

	assert.Equal(t, "Missing", nodes[0].ID)
	assert.False(t, nodes[0].Exists)
	assert.Equal(t, "ghost", nodes[0].Group)
	assert.Equal(t, "a.md", nodes[1].ID)
	assert.True(t, nodes[1].Exists)
	assert.Equal(t, "root", nodes[1].Group)
	assert.Equal(t, GraphEdge{Source: "a.md", Target: "Missing"}, edges[0])
}

func TestGraph_GhostDisappearsWhenLinkRemoved(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c1", Links: []string{"Missing"}})
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c2"})

	nodes, edges, err := db.Graph(nil)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
	assert.Empty(t, edges)
}

func TestGraph_LinkResolution(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "notes/target.md", Checksum: "c1", Title: "Target"})
	// Three targets, one resolution rule each: exact path, path without
	// extension, bare stem.
	mustIndex(t, db, NoteUpdate{
		Path: "a.md", Checksum: "c2",
		Links: []string{"notes/target.md", "notes/target", "target"},
	})

	_, edges, err := db.Graph(nil)
	require.NoError(t, err)
	require.Len(t, edges, 1, "all three spellings should collapse to one edge")
	assert.Equal(t, "notes/target.md", edges[0].Target)
}

func TestGraph_StemTieBreaksByPath(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "zzz/dup.md", Checksum: "c1"})
	mustIndex(t, db, NoteUpdate{Path: "aaa/dup.md", Checksum: "c2"})
	mustIndex(t, db, NoteUpdate{Path: "src.md", Checksum: "c3", Links: []string{"dup"}})

	_, edges, err := db.Graph(nil)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "aaa/dup.md", edges[0].Target)
}

func TestGraph_CustomClassifier(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "projects/x.md", Checksum: "c1"})

	nodes, _, err := db.Graph(func(GraphNode) string { return "custom" })
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "custom", nodes[0].Group)
}

func TestDefaultClassifier_TopLevelFolder(t *testing.T) {
	assert.Equal(t, "projects", DefaultClassifier(GraphNode{ID: "projects/a/b.md", Exists: true}))
	assert.Equal(t, "root", DefaultClassifier(GraphNode{ID: "a.md", Exists: true}))
	assert.Equal(t, "ghost", DefaultClassifier(GraphNode{ID: "whatever"}))
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "hub.md", Checksum: "c1"})
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c2", Links: []string{"hub"}})
	mustIndex(t, db, NoteUpdate{Path: "b.md", Checksum: "c3", Links: []string{"hub.md"}})
	mustIndex(t, db, NoteUpdate{Path: "c.md", Checksum: "c4", Links: []string{"other"}})

	back, err := db.Backlinks("hub.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, back)
}

func TestRelatedNotes_RankedAndCapped(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "query.md", Checksum: "q", Vector: []float32{1, 0}})
	// Seven neighbours with decreasing similarity to (1,0).
	for i := 0; i < 7; i++ {
		mustIndex(t, db, NoteUpdate{
			Path:     fmt.Sprintf("n%d.md", i),
			Checksum: fmt.Sprintf("c%d", i),
			Vector:   []float32{1, float32(i)},
		})
	}

	related, err := db.RelatedNotes("query.md")
	require.NoError(t, err)
	require.Len(t, related, RelatedLimit)
	assert.Equal(t, "n0.md", related[0].Path)
	for i := 1; i < len(related); i++ {
		assert.LessOrEqual(t, related[i].Score, related[i-1].Score)
	}
	for _, r := range related {
		assert.NotEqual(t, "query.md", r.Path, "query note must not rank itself")
	}
}

func TestRelatedNotes_NoEmbedding(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "plain.md", Checksum: "c1"})
	mustIndex(t, db, NoteUpdate{Path: "other.md", Checksum: "c2", Vector: []float32{1, 0}})

	related, err := db.RelatedNotes("plain.md")
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestSemanticSearch_TieBreaksByPath(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "b.md", Checksum: "c1", Vector: []float32{2, 0}})
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c2", Vector: []float32{3, 0}})

	// Both vectors point the same way, so the scores tie exactly.
	got, err := db.SemanticSearch([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.md", got[0].Path)
	assert.Equal(t, "b.md", got[1].Path)
}

func TestSemanticSearch_EmptyQueryVector(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{Path: "a.md", Checksum: "c1", Vector: []float32{1}})

	got, err := db.SemanticSearch(nil, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAllTasks_OrderedByPathThenPosition(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, NoteUpdate{
		Path: "z.md", Checksum: "c1", Title: "Z",
		Todos: []models.Todo{{Content: "z task"}},
	})
	mustIndex(t, db, NoteUpdate{
		Path: "a.md", Checksum: "c2", Title: "A",
		Todos: []models.Todo{{Content: "one"}, {Content: "two", Completed: true}},
	})

	tasks, err := db.AllTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "one", tasks[0].Content)
	assert.Equal(t, "two", tasks[1].Content)
	assert.True(t, tasks[1].Completed)
	assert.Equal(t, "z task", tasks[2].Content)
	assert.Equal(t, "A", tasks[0].FileTitle)
	assert.Equal(t, "a.md", tasks[0].FilePath)
}
