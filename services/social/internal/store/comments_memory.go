package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memComment struct {
	Comment
	seq int64 // insertion order, breaks created_at ties
}

// InMemoryCommentStore is a development-only in-memory implementation.
type InMemoryCommentStore struct {
	mu       sync.RWMutex
	comments map[string]*memComment        // id -> comment
	likes    map[string]map[string]struct{} // commentID -> userIDs
	nextSeq  int64
}

func NewInMemoryCommentStore() *InMemoryCommentStore {
	return &InMemoryCommentStore{
		comments: make(map[string]*memComment),
		likes:    make(map[string]map[string]struct{}),
	}
}

func (s *InMemoryCommentStore) EnsureSchema(context.Context) error { return nil }

func (s *InMemoryCommentStore) Create(_ context.Context, c Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ParentID != nil {
		parent, ok := s.comments[*c.ParentID]
		if !ok || parent.StoryID != c.StoryID || parent.ParentID != nil || parent.DeletedAt != nil {
			return Comment{}, ErrInvalidParent
		}
	}

	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()
	c.Likes = 0
	c.UpdatedAt, c.DeletedAt = nil, nil
	s.nextSeq++
	s.comments[c.ID] = &memComment{Comment: c, seq: s.nextSeq}
	return c, nil
}

func (s *InMemoryCommentStore) ListThread(_ context.Context, q ThreadQuery) (ThreadPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var roots []*memComment
	for _, c := range s.comments {
		if c.StoryID != q.StoryID || c.ParentID != nil {
			continue
		}
		if q.ChapterID != nil && (c.ChapterID == nil || *c.ChapterID != *q.ChapterID) {
			continue
		}
		roots = append(roots, c)
	}
	sort.Slice(roots, func(i, j int) bool {
		if !roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].CreatedAt.After(roots[j].CreatedAt)
		}
		return roots[i].seq > roots[j].seq
	})

	total := int64(len(roots))
	start := min(max(q.Offset, 0), len(roots))
	end := len(roots)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(roots))
	}
	roots = roots[start:end]

	nodes := make([]CommentTreeNode, len(roots))
	for i, root := range roots {
		var replies []*memComment
		for _, c := range s.comments {
			if c.ParentID != nil && *c.ParentID == root.ID {
				replies = append(replies, c)
			}
		}
		sort.Slice(replies, func(a, b int) bool {
			if !replies[a].CreatedAt.Equal(replies[b].CreatedAt) {
				return replies[a].CreatedAt.Before(replies[b].CreatedAt)
			}
			return replies[a].seq < replies[b].seq
		})
		out := make([]Comment, len(replies))
		for j, r := range replies {
			out[j] = r.Comment
		}
		nodes[i] = CommentTreeNode{Comment: root.Comment, Replies: out}
	}
	return ThreadPage{Nodes: nodes, Total: total}, nil
}

func (s *InMemoryCommentStore) UpdateBody(_ context.Context, commentID, userID, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || c.UserID != userID || c.DeletedAt != nil {
		return ErrNotFoundOrForbidden
	}
	c.Body = body
	now := time.Now().UTC()
	c.UpdatedAt = &now
	return nil
}

func (s *InMemoryCommentStore) SoftDelete(_ context.Context, commentID, userID string, asAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || c.DeletedAt != nil || (!asAdmin && c.UserID != userID) {
		return ErrNotFoundOrForbidden
	}
	markDeleted(c, time.Now().UTC())
	return nil
}

func (s *InMemoryCommentStore) DeleteByStory(_ context.Context, storyID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var n int64
	for _, c := range s.comments {
		if c.StoryID == storyID && c.DeletedAt == nil {
			markDeleted(c, now)
			n++
		}
	}
	return n, nil
}

func markDeleted(c *memComment, now time.Time) {
	c.Body = DeletedBody
	c.DeletedAt = &now
}

func (s *InMemoryCommentStore) Like(_ context.Context, commentID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || c.DeletedAt != nil {
		return ErrNotFoundOrForbidden
	}
	if s.likes[commentID] == nil {
		s.likes[commentID] = make(map[string]struct{})
	}
	if _, liked := s.likes[commentID][userID]; liked {
		return nil
	}
	s.likes[commentID][userID] = struct{}{}
	c.Likes++
	return nil
}

func (s *InMemoryCommentStore) Unlike(_ context.Context, commentID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok {
		return ErrNotFoundOrForbidden
	}
	if _, liked := s.likes[commentID][userID]; !liked {
		return nil
	}
	delete(s.likes[commentID], userID)
	c.Likes--
	return nil
}
