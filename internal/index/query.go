package index

import (
	"fmt"
	"sort"
	"strings"
)

// SearchResult is one ranked full-text hit.
type SearchResult struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Title     string `json:"title"`
	Highlight string `json:"highlight"`
}

// GraphNode is a vertex in the link graph. Ghost nodes (Exists=false)
// stand in for link targets with no corresponding note.
type GraphNode struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Exists bool   `json:"exists"`
	Group  string `json:"group"`
}

// GraphEdge is a directed, deduplicated link between two node ids.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Classifier assigns a node its group. Callers plug in their own; nil
// falls back to DefaultClassifier.
type Classifier func(GraphNode) string

// DefaultClassifier groups existing notes by top-level folder and ghost
// nodes under "ghost".
func DefaultClassifier(n GraphNode) string {
	if !n.Exists {
		return "ghost"
	}
	if i := strings.Index(n.ID, "/"); i >= 0 {
		return n.ID[:i]
	}
	return "root"
}

// ScoredNote is one similarity-ranked note.
type ScoredNote struct {
	ID    int64   `json:"id"`
	Path  string  `json:"path"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// TaskItem is one todo joined to its owning file.
type TaskItem struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	Completed bool   `json:"completed"`
	FilePath  string `json:"file_path"`
	FileTitle string `json:"file_title"`
}

// RelatedLimit is how many neighbours RelatedNotes returns.
const RelatedLimit = 5

type linkRow struct {
	sourceID int64
	target   string
}

type embeddingRow struct {
	fileID int64
	path   string
	vector []float32
}

// resolver maps raw link targets to existing note paths. A target
// resolves by exact path, by path with the note extension appended, or by
// base-name stem (first path ascending wins for determinism).
type resolver struct {
	byPath map[string]struct{}
	byStem map[string]string
}

func newResolver(paths []string) *resolver {
	r := &resolver{
		byPath: make(map[string]struct{}, len(paths)),
		byStem: make(map[string]string, len(paths)),
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	for _, p := range sorted {
		r.byPath[p] = struct{}{}
		stem := strings.TrimSuffix(p, ".md")
		if i := strings.LastIndex(stem, "/"); i >= 0 {
			stem = stem[i+1:]
		}
		if _, ok := r.byStem[stem]; !ok {
			r.byStem[stem] = p
		}
	}
	return r
}

// resolve returns the note path for a target, or "" for a ghost.
func (r *resolver) resolve(target string) string {
	if _, ok := r.byPath[target]; ok {
		return target
	}
	if _, ok := r.byPath[target+".md"]; ok {
		return target + ".md"
	}
	if p, ok := r.byStem[target]; ok {
		return p
	}
	return ""
}

// Graph returns one node per indexed file plus one synthetic node per
// distinct unresolved link target, and the deduplicated edge set.
func (db *DB) Graph(classify Classifier) ([]GraphNode, []GraphEdge, error) {
	if classify == nil {
		classify = DefaultClassifier
	}

	files, err := db.filePaths()
	if err != nil {
		return nil, nil, err
	}
	titles, err := db.titlesByID()
	if err != nil {
		return nil, nil, err
	}
	links, err := db.allLinks()
	if err != nil {
		return nil, nil, err
	}

	paths := make([]string, 0, len(files))
	pathByID := make(map[int64]string, len(files))
	for id, p := range files {
		paths = append(paths, p)
		pathByID[id] = p
	}
	res := newResolver(paths)

	edgeSeen := make(map[GraphEdge]struct{})
	ghostSeen := make(map[string]struct{})
	var edges []GraphEdge
	var ghosts []string

	for _, l := range links {
		source, ok := pathByID[l.sourceID]
		if !ok {
			continue
		}
		targetID := res.resolve(l.target)
		if targetID == "" {
			targetID = l.target
			if _, dup := ghostSeen[l.target]; !dup {
				ghostSeen[l.target] = struct{}{}
				ghosts = append(ghosts, l.target)
			}
		}
		e := GraphEdge{Source: source, Target: targetID}
		if _, dup := edgeSeen[e]; dup {
			continue
		}
		edgeSeen[e] = struct{}{}
		edges = append(edges, e)
	}

	nodes := make([]GraphNode, 0, len(files)+len(ghosts))
	for id, p := range files {
		n := GraphNode{ID: p, Title: titles[id], Exists: true}
		n.Group = classify(n)
		nodes = append(nodes, n)
	}
	for _, g := range ghosts {
		n := GraphNode{ID: g, Title: g, Exists: false}
		n.Group = classify(n)
		nodes = append(nodes, n)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return nodes, edges, nil
}

// Backlinks returns the paths of all notes whose links resolve to target.
func (db *DB) Backlinks(target string) ([]string, error) {
	files, err := db.filePaths()
	if err != nil {
		return nil, err
	}
	links, err := db.allLinks()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	for _, p := range files {
		paths = append(paths, p)
	}
	res := newResolver(paths)

	seen := make(map[string]struct{})
	var out []string
	for _, l := range links {
		if res.resolve(l.target) != target {
			continue
		}
		source := files[l.sourceID]
		if source == "" || source == target {
			continue
		}
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}
		out = append(out, source)
	}
	sort.Strings(out)
	return out, nil
}

// RelatedNotes ranks every other embedded note by cosine similarity to
// the note at path. A note without an embedding yields an empty result.
func (db *DB) RelatedNotes(path string) ([]ScoredNote, error) {
	embs, err := db.allEmbeddings()
	if err != nil {
		return nil, err
	}

	var query []float32
	for _, e := range embs {
		if e.path == path {
			query = e.vector
			break
		}
	}
	if query == nil {
		return nil, nil
	}

	titles, err := db.titlesByID()
	if err != nil {
		return nil, err
	}

	var out []ScoredNote
	for _, e := range embs {
		if e.path == path {
			continue
		}
		out = append(out, ScoredNote{
			ID:    e.fileID,
			Path:  e.path,
			Title: titles[e.fileID],
			Score: Cosine(query, e.vector),
		})
	}
	sortScored(out)
	if len(out) > RelatedLimit {
		out = out[:RelatedLimit]
	}
	return out, nil
}

// SemanticSearch ranks every embedded note by cosine similarity to the
// given query vector.
func (db *DB) SemanticSearch(query []float32, limit int) ([]ScoredNote, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	embs, err := db.allEmbeddings()
	if err != nil {
		return nil, err
	}
	titles, err := db.titlesByID()
	if err != nil {
		return nil, err
	}

	var out []ScoredNote
	for _, e := range embs {
		out = append(out, ScoredNote{
			ID:    e.fileID,
			Path:  e.path,
			Title: titles[e.fileID],
			Score: Cosine(query, e.vector),
		})
	}
	sortScored(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortScored orders strictly descending by score, ties broken by path
// ascending for determinism.
func sortScored(s []ScoredNote) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].Path < s[j].Path
	})
}

// AllTasks returns every todo joined to its owning file, ordered by file
// path then insertion order.
func (db *DB) AllTasks() ([]TaskItem, error) {
	titles, err := db.titlesByID()
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`
		SELECT t.id, t.file_id, t.content, t.completed, f.path
		FROM todos t
		JOIN files f ON f.id = t.file_id
		ORDER BY f.path, t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("index: all tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskItem
	for rows.Next() {
		var item TaskItem
		var fileID int64
		if err := rows.Scan(&item.ID, &fileID, &item.Content, &item.Completed, &item.FilePath); err != nil {
			return nil, err
		}
		item.FileTitle = titles[fileID]
		out = append(out, item)
	}
	return out, rows.Err()
}

func (db *DB) filePaths() (map[int64]string, error) {
	rows, err := db.conn.Query(`SELECT id, path FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: file paths: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var p string
		if err := rows.Scan(&id, &p); err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, rows.Err()
}

func (db *DB) allLinks() ([]linkRow, error) {
	rows, err := db.conn.Query(`SELECT source_file_id, target FROM links`)
	if err != nil {
		return nil, fmt.Errorf("index: all links: %w", err)
	}
	defer rows.Close()

	var out []linkRow
	for rows.Next() {
		var l linkRow
		if err := rows.Scan(&l.sourceID, &l.target); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (db *DB) allEmbeddings() ([]embeddingRow, error) {
	rows, err := db.conn.Query(`
		SELECT e.file_id, f.path, e.vector
		FROM embeddings e
		JOIN files f ON f.id = e.file_id
	`)
	if err != nil {
		return nil, fmt.Errorf("index: all embeddings: %w", err)
	}
	defer rows.Close()

	var out []embeddingRow
	for rows.Next() {
		var e embeddingRow
		var blob []byte
		if err := rows.Scan(&e.fileID, &e.path, &blob); err != nil {
			return nil, err
		}
		e.vector = decodeVector(blob)
		out = append(out, e)
	}
	return out, rows.Err()
}
