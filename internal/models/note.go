// Package models defines the domain types for Ansuz.
package models

import "time"

// NoteMetadata identifies one note candidate found by a vault scan.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TreeNode is one entry in the hierarchical vault listing. Folders sort
// before files, then case-folded alphabetical order.
type TreeNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	IsDir    bool       `json:"is_dir"`
	Children []TreeNode `json:"children,omitempty"`
}

// Todo is a checkbox task line extracted from a note.
type Todo struct {
	Content   string `json:"content"`
	Completed bool   `json:"completed"`
}
