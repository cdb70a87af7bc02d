package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/queryservice"
	"github.com/starford/ansuz/internal/syncer"
	"github.com/starford/ansuz/internal/testutil"
)

// testServer builds the MCP server over an indexed vault. The tools are
// read-only, so fixtures go through the file system plus one sync pass.
func testServer(t *testing.T, notes map[string]string) *Server {
	t.Helper()

	vaultDir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	for rel, content := range notes {
		testutil.WriteNote(t, vaultDir, rel, content)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := syncer.New(store, db, logger, syncer.Config{})
	if _, err := c.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	svc := queryservice.NewService(store, db, nil, 0, nil)
	return New(svc)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so we call the handler
	// functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "semantic_search":
		result, err = srv.semanticSearch(ctx, req)
	case "related_notes":
		result, err = srv.relatedNotes(ctx, req)
	case "get_graph":
		result, err = srv.getGraph(ctx, req)
	case "list_tasks":
		result, err = srv.listTasks(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSearchNotes(t *testing.T) {
	srv := testServer(t, map[string]string{
		"recipes.md": "# Recipes\nLasagna with tomatoes and cheese.",
		"diary.md":   "# Diary\nNothing happened today.",
	})

	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "lasagna"})
	text := resultText(r)
	if !strings.Contains(text, "recipes.md") {
		t.Errorf("search result = %q, want recipes.md hit", text)
	}
	if strings.Contains(text, "diary.md") {
		t.Errorf("search result includes non-matching note: %q", text)
	}
}

func TestSearchNotes_MissingArgument(t *testing.T) {
	srv := testServer(t, nil)
	r := callTool(t, srv, "search_notes", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error without query argument")
	}
}

func TestReadNote_WithBacklinks(t *testing.T) {
	srv := testServer(t, map[string]string{
		"hub.md":   "# Hub\nCentral note.",
		"spoke.md": "# Spoke\nPoints at [[hub]].",
	})

	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "hub.md"})
	text := resultText(r)
	if !strings.Contains(text, "Central note.") {
		t.Errorf("read result = %q", text)
	}
	if !strings.Contains(text, "Backlinks: spoke.md") {
		t.Errorf("read result missing backlinks footer: %q", text)
	}
}

func TestReadNote_Missing(t *testing.T) {
	srv := testServer(t, nil)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestGetGraph(t *testing.T) {
	srv := testServer(t, map[string]string{
		"a.md": "Links to [[Phantom]].",
	})

	r := callTool(t, srv, "get_graph", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, `"a.md"`) || !strings.Contains(text, `"Phantom"`) {
		t.Errorf("graph = %q, want both real and ghost nodes", text)
	}
}

func TestListTasks(t *testing.T) {
	srv := testServer(t, map[string]string{
		"plan.md": "# Plan\n- [ ] write tests\n- [x] write code",
	})

	r := callTool(t, srv, "list_tasks", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "write tests") || !strings.Contains(text, "write code") {
		t.Errorf("tasks = %q", text)
	}
}

func TestListNotes(t *testing.T) {
	srv := testServer(t, map[string]string{
		"topics/deep.md": "# Deep",
		"top.md":         "# Top",
	})

	r := callTool(t, srv, "list_notes", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "topics") || !strings.Contains(text, "top.md") {
		t.Errorf("tree = %q", text)
	}
}

func TestSemanticSearch_NoProvider(t *testing.T) {
	srv := testServer(t, map[string]string{"a.md": "# A"})

	r := callTool(t, srv, "semantic_search", map[string]interface{}{"query": "anything"})
	if r.IsError {
		t.Errorf("semantic search without provider should degrade, got error: %q", resultText(r))
	}
}

func TestRelatedNotes_NoEmbedding(t *testing.T) {
	srv := testServer(t, map[string]string{"a.md": "# A"})

	r := callTool(t, srv, "related_notes", map[string]interface{}{"path": "a.md"})
	if r.IsError {
		t.Errorf("related notes without embeddings should degrade, got error: %q", resultText(r))
	}
}
