package index

// Store defines the interface for vault index operations. Consumers
// should depend on this interface rather than the concrete *DB type to
// facilitate testing with mocks.
type Store interface {
	IndexNote(n NoteUpdate) (changed bool, err error)
	DeleteFile(path string) error
	AllChecksums() (map[string]string, error)
	FileID(path string) (int64, bool, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph(classify Classifier) ([]GraphNode, []GraphEdge, error)
	Backlinks(target string) ([]string, error)
	RelatedNotes(path string) ([]ScoredNote, error)
	SemanticSearch(query []float32, limit int) ([]ScoredNote, error)
	AllTasks() ([]TaskItem, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
