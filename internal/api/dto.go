package api

import (
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/queryservice"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = queryservice.NoteDetail

// SearchResponse wraps full-text search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// ScoredResponse wraps similarity-ranked results (related notes and
// semantic search share the shape).
type ScoredResponse struct {
	Results []index.ScoredNote `json:"results"`
}

// GraphResponse wraps the link graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes"`
	Edges []index.GraphEdge `json:"edges"`
}

// TasksResponse wraps the flattened task list.
type TasksResponse struct {
	Tasks []index.TaskItem `json:"tasks"`
}

// TreeResponse wraps the ordered vault hierarchy.
type TreeResponse struct {
	Tree []models.TreeNode `json:"tree"`
}
