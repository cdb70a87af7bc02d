// Package storage implements the vault scanner: a read-only view of the
// note folder bound to one validated root.
package storage

import (
	"fmt"

	"github.com/starford/ansuz/internal/models"
)

// Provider is the interface for vault read operations. The index engine
// never writes note content; mutation belongs to the file-access layer.
type Provider interface {
	// List returns metadata for every note file under dir (relative to the
	// vault root). An unreadable directory fails the whole listing.
	List(dir string) ([]models.NoteMetadata, error)
	// Tree returns the ordered vault hierarchy: folders before files, then
	// case-folded alphabetical order.
	Tree() ([]models.TreeNode, error)
	// Read returns the raw bytes of the file at path (relative to the vault root).
	Read(path string) ([]byte, error)
}

// ScanError reports a vault walk that could not complete. A scan pass that
// hits one is aborted rather than producing a partial candidate set.
type ScanError struct {
	Dir string
	Err error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("storage: scan %s: %v", e.Dir, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }
