// Package memory is the in-process Backend used for development and tests.
// Semantics mirror the persistent stores: newest-first ordering with postId
// tie-break, opaque cursors, best-effort image handling.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/models"
)

type Backend struct {
	mu       sync.RWMutex
	posts    []models.Post
	profiles map[string]models.Profile
}

func New() *Backend {
	return &Backend{profiles: make(map[string]models.Profile)}
}

func (b *Backend) Provider() string { return "memory" }

func (b *Backend) ListPosts(_ context.Context, limit int, cursor backend.Cursor, tag string) ([]models.Post, backend.Cursor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	start := 0
	if cursor != "" {
		key, err := backend.DecodeCursor(cursor)
		if err == nil {
			// Resume at the first post strictly after the boundary in
			// (createdAt DESC, postId DESC) order. A positional scan keeps
			// working when the boundary post was deleted between pages.
			start = len(b.posts)
			for i, p := range b.posts {
				if p.CreatedAt < key.CreatedAt || (p.CreatedAt == key.CreatedAt && p.PostID < key.PostID) {
					start = i
					break
				}
			}
		}
	}

	items := make([]models.Post, 0, limit)
	var next backend.Cursor
	for i := start; i < len(b.posts); i++ {
		p := b.posts[i]
		if tag != "" && !p.HasTag(tag) {
			continue
		}
		if len(items) == limit {
			next = backend.EncodeCursor(backend.PageKey{CreatedAt: items[limit-1].CreatedAt, PostID: items[limit-1].PostID})
			break
		}
		items = append(items, p)
	}
	return items, next, nil
}

func (b *Backend) GetPost(_ context.Context, postID string) (*models.Post, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.posts {
		if p.PostID == postID {
			post := p
			return &post, nil
		}
	}
	return nil, backend.ErrNotFound
}

func (b *Backend) CreatePost(_ context.Context, post *models.Post) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posts = append(b.posts, *post)
	sort.Slice(b.posts, func(i, j int) bool {
		if b.posts[i].CreatedAt != b.posts[j].CreatedAt {
			return b.posts[i].CreatedAt > b.posts[j].CreatedAt
		}
		return b.posts[i].PostID > b.posts[j].PostID
	})
	return nil
}

func (b *Backend) DeletePost(_ context.Context, post *models.Post) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.posts {
		if p.PostID == post.PostID {
			b.posts = append(b.posts[:i], b.posts[i+1:]...)
			return nil
		}
	}
	return backend.ErrNotFound
}

func (b *Backend) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if p, ok := b.profiles[userID]; ok {
		profile := p
		return &profile, nil
	}
	return nil, nil
}

func (b *Backend) GetProfiles(_ context.Context, userIDs []string) (map[string]models.Profile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	profiles := make(map[string]models.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := b.profiles[id]; ok {
			profiles[id] = p
		}
	}
	return profiles, nil
}

func (b *Backend) UpsertProfile(_ context.Context, userID, nickname string) (*models.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := models.Now()
	profile := models.Profile{UserID: userID, Nickname: nickname, CreatedAt: now, UpdatedAt: now}
	if existing, ok := b.profiles[userID]; ok {
		profile.CreatedAt = existing.CreatedAt
	}
	b.profiles[userID] = profile
	return &profile, nil
}

func (b *Backend) CreateUploadURLs(_ context.Context, userID string, count int) (*models.UploadURLsResponse, error) {
	postID := uuid.NewString()
	urls := make([]models.UploadURL, 0, count)
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("images/%s-%d-%s.jpeg", postID, i, randomSuffix())
		urls = append(urls, models.UploadURL{Key: key, URL: "/storage/" + key})
	}
	return &models.UploadURLsResponse{PostID: postID, URLs: urls, ExpiresIn: 300}, nil
}

func randomSuffix() string {
	u := uuid.New()
	return fmt.Sprintf("%x", u[:8])
}
