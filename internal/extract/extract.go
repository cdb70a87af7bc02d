// Package extract parses a note's raw text into a title, outbound link
// targets, checkbox tasks, and normalized plain content for indexing.
package extract

import (
	"bytes"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	taskRe     = regexp.MustCompile(`^\s*[-*] \[( |x|X)\] (.+)$`)
	titleRe    = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	mdLinkRe   = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasisRe = regexp.MustCompile("[*`]+")
)

// Document holds the output of extracting one note.
type Document struct {
	Title   string
	Content string
	Links   []string
	Todos   []models.Todo
}

// Extract parses raw note bytes. Malformed or partial syntax is ignored,
// never fatal: the worst case is a document with fewer links or tasks.
func Extract(notePath string, data []byte) *Document {
	body := stripFrontmatter(data)

	return &Document{
		Title:   deriveTitle(notePath, body),
		Content: normalize(body),
		Links:   extractLinks(body),
		Todos:   extractTodos(body),
	}
}

// stripFrontmatter removes a leading YAML frontmatter block (between ---
// delimiters). Invalid YAML or a missing closing delimiter leaves the
// content untouched.
func stripFrontmatter(data []byte) string {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		// Not frontmatter after all; keep everything.
		return string(data)
	}

	after := rest[idx+1+len(delim):]
	return strings.TrimLeft(string(after), "\n\r")
}

// deriveTitle returns the first heading, else the filename stem.
func deriveTitle(notePath, body string) string {
	for _, line := range strings.Split(body, "\n") {
		m := titleRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		if text := strings.TrimSpace(m[1]); text != "" {
			return text
		}
	}
	base := path.Base(notePath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		// [[Target|Alias]] → Target.
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTodos returns checkbox task lines in document order.
func extractTodos(body string) []models.Todo {
	var out []models.Todo
	for _, line := range strings.Split(body, "\n") {
		m := taskRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, models.Todo{
			Content:   strings.TrimSpace(m[2]),
			Completed: m[1] != " ",
		})
	}
	return out
}

// normalize reduces Markdown body text to plain content for the search
// index: wikilinks become their display text, regular links keep their
// label, heading and emphasis markers are dropped.
func normalize(body string) string {
	s := wikilinkRe.ReplaceAllStringFunc(body, func(m string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(m, "[["), "]]")
		if i := strings.Index(inner, "|"); i >= 0 {
			inner = inner[i+1:]
		}
		return strings.TrimSpace(inner)
	})
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = headingRe.ReplaceAllString(s, "")
	s = emphasisRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
