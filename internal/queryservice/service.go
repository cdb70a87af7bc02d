// Package queryservice exposes the read-only query surface over the
// vault index: search, graph, related notes, semantic search, and tasks.
package queryservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/embed"
	"github.com/starford/ansuz/internal/extract"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// NoteDetail is the full read-only representation of a note.
type NoteDetail struct {
	Path      string        `json:"path"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Checksum  string        `json:"checksum"`
	Links     []string      `json:"links"`
	Todos     []models.Todo `json:"todos"`
	Backlinks []string      `json:"backlinks"`
}

// Service coordinates the scanner, index, and embedding provider for the
// query surface. It never writes note content.
type Service struct {
	store        storage.Provider
	db           *index.DB
	embedder     embed.Provider // nil disables semantic search
	embedTimeout time.Duration
	classify     index.Classifier
}

// NewService creates a query service. classify may be nil to use the
// default grouping.
func NewService(store storage.Provider, db *index.DB, embedder embed.Provider, embedTimeout time.Duration, classify index.Classifier) *Service {
	if embedTimeout <= 0 {
		embedTimeout = 10 * time.Second
	}
	return &Service{
		store:        store,
		db:           db,
		embedder:     embedder,
		embedTimeout: embedTimeout,
		classify:     classify,
	}
}

// SearchNotes runs a ranked full-text query. A blank query returns an
// empty result, not an error.
func (s *Service) SearchNotes(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// GraphData returns the link graph including ghost nodes.
func (s *Service) GraphData(_ context.Context) ([]index.GraphNode, []index.GraphEdge, error) {
	return s.db.Graph(s.classify)
}

// AllTasks returns every task across the vault, joined to its owning note.
func (s *Service) AllTasks(_ context.Context) ([]index.TaskItem, error) {
	return s.db.AllTasks()
}

// RelatedNotes ranks notes by embedding similarity to the note at path.
// A note without an embedding yields an empty result.
func (s *Service) RelatedNotes(_ context.Context, path string) ([]index.ScoredNote, error) {
	return s.db.RelatedNotes(path)
}

// SemanticSearch embeds the query and ranks all embedded notes against
// it. Without a provider, or with a blank query, the result is empty.
func (s *Service) SemanticSearch(ctx context.Context, query string, limit int) ([]index.ScoredNote, error) {
	if s.embedder == nil || query == "" {
		return nil, nil
	}
	ectx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()
	vector, err := s.embedder.Embed(ectx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnavailable, err)
	}
	return s.db.SemanticSearch(vector, limit)
}

// Tree returns the ordered vault hierarchy.
func (s *Service) Tree(_ context.Context) ([]models.TreeNode, error) {
	return s.store.Tree()
}

// GetNote reads a note from the vault, extracts it, and enriches it with
// backlinks from the index.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	doc := extract.Extract(path, data)

	backlinks, err := s.db.Backlinks(path)
	if err != nil {
		return nil, err
	}
	if backlinks == nil {
		backlinks = []string{}
	}
	links := doc.Links
	if links == nil {
		links = []string{}
	}
	todos := doc.Todos
	if todos == nil {
		todos = []models.Todo{}
	}

	return &NoteDetail{
		Path:      path,
		Title:     doc.Title,
		Content:   string(data),
		Checksum:  checksum.Sum(data),
		Links:     links,
		Todos:     todos,
		Backlinks: backlinks,
	}, nil
}
