// Package syncer reconciles the vault index with the current file-system
// state: scan, diff by checksum, extract, embed, store.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/ansuz/internal/embed"
	"github.com/starford/ansuz/internal/extract"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/storage"
)

// DefaultEmbedTimeout bounds one embedding call so a stalled provider
// cannot hang a pass indefinitely.
const DefaultEmbedTimeout = 10 * time.Second

const debounce = 200 * time.Millisecond

// ExtractError wraps a per-file failure: unreadable note, or an embedding
// call that failed or timed out. The file is skipped for the pass and
// retried on the next trigger because its stored checksum stays stale.
type ExtractError struct {
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("syncer: extract %s: %v", e.Path, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Policy decides whether a new or changed note gets its embedding
// recomputed. Kept explicit so the eager-vs-lazy trade-off stays a
// swappable decision instead of a hardcoded one.
type Policy interface {
	ShouldEmbed(path string) bool
}

// EagerPolicy recomputes the embedding on every content change.
type EagerPolicy struct{}

func (EagerPolicy) ShouldEmbed(string) bool { return true }

// DisabledPolicy never computes embeddings; similarity queries return
// empty results.
type DisabledPolicy struct{}

func (DisabledPolicy) ShouldEmbed(string) bool { return false }

// Stats summarises one completed pass.
type Stats struct {
	Scanned int
	Indexed int
	Removed int
	Skipped int
}

// Config carries the coordinator's collaborators and tuning.
type Config struct {
	Embedder     embed.Provider // nil disables embedding regardless of policy
	Policy       Policy         // nil means EagerPolicy
	EmbedTimeout time.Duration  // zero means DefaultEmbedTimeout
	OnComplete   func(Stats)    // called once per completed pass
}

// Coordinator runs sync passes over one vault. Exactly one pass runs at a
// time; triggers arriving mid-pass coalesce into one subsequent pass.
type Coordinator struct {
	store  storage.Provider
	db     *index.DB
	logger *slog.Logger
	cfg    Config

	group   singleflight.Group
	trigger chan struct{}
}

// New creates a coordinator. Nothing runs until Sync or Run is called.
func New(store storage.Provider, db *index.DB, logger *slog.Logger, cfg Config) *Coordinator {
	if cfg.Policy == nil {
		cfg.Policy = EagerPolicy{}
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	return &Coordinator{
		store:   store,
		db:      db,
		logger:  logger,
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a pass without blocking. Triggers landing while a pass
// runs collapse into exactly one follow-up pass.
func (c *Coordinator) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run processes triggers until ctx is cancelled. Each trigger is
// debounced briefly so bursts of file events cost one pass.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.trigger:
		}

		timer := time.NewTimer(debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		stats, err := c.Sync(ctx)
		if err != nil {
			// Scan-level failure aborts the pass; the next trigger retries.
			c.logger.Warn("sync: pass failed", slog.String("error", err.Error()))
			continue
		}
		c.logger.Info("sync: pass complete",
			slog.Int("scanned", stats.Scanned),
			slog.Int("indexed", stats.Indexed),
			slog.Int("removed", stats.Removed),
			slog.Int("skipped", stats.Skipped))
	}
}

// Sync runs one pass. Concurrent callers share a single in-flight pass.
func (c *Coordinator) Sync(ctx context.Context) (Stats, error) {
	v, err, _ := c.group.Do("pass", func() (any, error) {
		return c.runPass(ctx)
	})
	stats, _ := v.(Stats)
	return stats, err
}

func (c *Coordinator) runPass(ctx context.Context) (Stats, error) {
	var stats Stats

	metas, err := c.store.List("")
	if err != nil {
		return stats, err
	}
	checksums, err := c.db.AllChecksums()
	if err != nil {
		return stats, err
	}

	seen := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Scanned++
		seen[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		if err := c.indexOne(ctx, m.Path, m.Checksum); err != nil {
			stats.Skipped++
			c.logger.Warn("sync: file skipped", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Indexed++
		c.logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	// Remove rows whose path was not seen this pass; derived rows cascade.
	for p := range checksums {
		if _, ok := seen[p]; ok {
			continue
		}
		if err := c.db.DeleteFile(p); err != nil {
			stats.Skipped++
			c.logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		c.logger.Debug("sync: removed stale", slog.String("path", p))
	}

	if c.cfg.OnComplete != nil {
		c.cfg.OnComplete(stats)
	}
	return stats, nil
}

// indexOne reads, extracts, optionally embeds, and stores one note.
func (c *Coordinator) indexOne(ctx context.Context, path, cs string) error {
	data, err := c.store.Read(path)
	if err != nil {
		return &ExtractError{Path: path, Err: err}
	}
	doc := extract.Extract(path, data)

	var vector []float32
	if c.cfg.Embedder != nil && c.cfg.Policy.ShouldEmbed(path) {
		ectx, cancel := context.WithTimeout(ctx, c.cfg.EmbedTimeout)
		vector, err = c.cfg.Embedder.Embed(ectx, doc.Title+"\n\n"+doc.Content)
		cancel()
		if err != nil {
			return &ExtractError{Path: path, Err: err}
		}
	}

	if _, err := c.db.IndexNote(index.NoteUpdate{
		Path:     path,
		Checksum: cs,
		Title:    doc.Title,
		Content:  doc.Content,
		Links:    doc.Links,
		Todos:    doc.Todos,
		Vector:   vector,
	}); err != nil {
		return err
	}
	return nil
}
