// Package progress keeps every reader's position in memory and writes it
// behind to the progress store.
//
// Reads and writes never touch the store. The store is read once at startup
// (Load) and written by periodic whole-cache flushes (Flush); an update made
// after the last successful flush is lost if the process dies.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storyhub/internal/platform/metrics"
	"github.com/example/storyhub/services/reader/internal/store"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrStoreUnavailable = errors.New("progress store unavailable")
)

// Position is the reading position returned to callers.
type Position struct {
	ChapterPosition int `json:"chapterPosition"`
}

// Source is the read side of the progress store used by Load.
type Source interface {
	LoadAll(ctx context.Context) ([]store.ProgressRecord, error)
}

// Sink is the write side of the progress store used by Flush.
type Sink interface {
	UpsertMany(ctx context.Context, recs []store.ProgressRecord) error
}

type key struct {
	user, story uuid.UUID
}

// String renders the key as "{userId}-{storyId}".
func (k key) String() string {
	return k.user.String() + "-" + k.story.String()
}

// Cache is the process-wide progress cache. Construct one with NewCache at
// startup and share it; all methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[key]int
	log     *zap.Logger
}

func NewCache(log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{entries: make(map[key]int), log: log}
}

// Load replaces the cached mapping with every valid record from src and
// returns how many were loaded. A failing source is logged and leaves the cache as it was: readers
// then start from chapter 1 until they update.
func (c *Cache) Load(ctx context.Context, src Source) int {
	recs, err := src.LoadAll(ctx)
	metrics.RecordLoad(err)
	if err != nil {
		c.log.Error("progress load failed, starting with empty cache",
			zap.Error(fmt.Errorf("%w: %w", ErrStoreUnavailable, err)))
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[key]int, len(recs))
	loaded := 0
	for _, rec := range recs {
		if rec.ChapterID < 1 || rec.UserID == uuid.Nil || rec.StoryID == uuid.Nil {
			c.log.Warn("skipping invalid progress record",
				zap.String("user_id", rec.UserID.String()),
				zap.String("story_id", rec.StoryID.String()),
				zap.Int("chapter_id", rec.ChapterID))
			continue
		}
		c.entries[key{user: rec.UserID, story: rec.StoryID}] = rec.ChapterID
		loaded++
	}
	metrics.ProgressCacheEntries.Set(float64(len(c.entries)))
	c.log.Info("progress cache loaded", zap.Int("records", loaded))
	return loaded
}

// Get returns the cached position, or chapter 1 for a pair never seen
// (including malformed identifiers).
func (c *Cache) Get(userID, storyID string) Position {
	k, err := parseKey(userID, storyID)
	if err != nil {
		return Position{ChapterPosition: store.DefaultChapter}
	}

	c.mu.RLock()
	chapter, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return Position{ChapterPosition: store.DefaultChapter}
	}
	return Position{ChapterPosition: chapter}
}

// Update records chapterPosition for the pair, replacing any previous value.
// Identifiers must be UUIDs and chapterPosition at least 1; otherwise the
// returned error wraps ErrInvalidArgument and the cache is untouched.
func (c *Cache) Update(userID, storyID string, chapterPosition int) error {
	k, err := parseKey(userID, storyID)
	if err != nil {
		return err
	}
	if chapterPosition < 1 {
		return fmt.Errorf("%w: chapter position must be a positive integer, got %d", ErrInvalidArgument, chapterPosition)
	}

	c.mu.Lock()
	c.entries[k] = chapterPosition
	n := len(c.entries)
	c.mu.Unlock()

	metrics.ProgressCacheEntries.Set(float64(n))
	c.log.Debug("progress updated", zap.String("key", k.String()), zap.Int("chapter", chapterPosition))
	return nil
}

// Flush upserts a snapshot of the whole cache into sink. Entries are never
// marked clean, so a failed flush is simply repeated by the next one.
func (c *Cache) Flush(ctx context.Context, sink Sink) (int, error) {
	recs := c.Snapshot()
	if len(recs) == 0 {
		return 0, nil
	}

	start := time.Now()
	err := sink.UpsertMany(ctx, recs)
	metrics.RecordFlush(time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return len(recs), nil
}

// Snapshot copies the current cache contents.
func (c *Cache) Snapshot() []store.ProgressRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]store.ProgressRecord, 0, len(c.entries))
	for k, chapter := range c.entries {
		out = append(out, store.ProgressRecord{UserID: k.user, StoryID: k.story, ChapterID: chapter})
	}
	return out
}

// Len returns the number of cached pairs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func parseKey(userID, storyID string) (key, error) {
	u, err := uuid.Parse(userID)
	if err != nil || u == uuid.Nil {
		return key{}, fmt.Errorf("%w: malformed user id %q", ErrInvalidArgument, userID)
	}
	s, err := uuid.Parse(storyID)
	if err != nil || s == uuid.Nil {
		return key{}, fmt.Errorf("%w: malformed story id %q", ErrInvalidArgument, storyID)
	}
	return key{user: u, story: s}, nil
}
