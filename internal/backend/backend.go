// Package backend defines the storage interface shared by every deployment
// target. Handlers are written against it once; the provider is chosen at
// startup.
package backend

import (
	"context"
	"errors"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/models"
)

// ErrNotFound is returned when a post or profile does not exist.
var ErrNotFound = errors.New("not found")

// Cursor is an opaque pagination token. Clients round-trip it unchanged;
// its contents are a store implementation detail.
type Cursor string

// Backend is the full persistence surface: post store, profile store and
// upload-URL issuer.
type Backend interface {
	// ListPosts returns up to limit posts newest-first, optionally filtered
	// by tag, plus a cursor when more results exist.
	ListPosts(ctx context.Context, limit int, cursor Cursor, tag string) ([]models.Post, Cursor, error)

	// GetPost fetches one post by id, ErrNotFound when absent.
	GetPost(ctx context.Context, postID string) (*models.Post, error)

	// CreatePost inserts a post. The caller supplies the generated id and
	// timestamp; ids are assumed collision-free.
	CreatePost(ctx context.Context, post *models.Post) error

	// DeletePost removes the post record. Deletion of associated images is
	// best-effort and must not block or fail the record delete.
	DeletePost(ctx context.Context, post *models.Post) error

	// GetProfile returns the user's profile, or nil when none exists.
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)

	// GetProfiles batch-reads profiles by user id. Users without a profile
	// are simply absent from the result.
	GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error)

	// UpsertProfile sets the user's nickname, preserving CreatedAt across
	// updates.
	UpsertProfile(ctx context.Context, userID, nickname string) (*models.Profile, error)

	// CreateUploadURLs issues count distinct object keys with time-limited
	// PUT URLs. Nothing is persisted; unused keys are simply orphaned.
	CreateUploadURLs(ctx context.Context, userID string, count int) (*models.UploadURLsResponse, error)

	// Provider names the implementation for the health endpoint.
	Provider() string
}
