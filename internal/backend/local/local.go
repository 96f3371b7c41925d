// Package local is the self-hosted Backend: posts and profiles in Postgres
// through gorm, images on the local filesystem behind HMAC-signed URLs.
package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/models"
)

type Backend struct {
	db      *gorm.DB
	storage *Storage
	logger  *zap.Logger
}

func New(db *gorm.DB, storage *Storage, logger *zap.Logger) (*Backend, error) {
	if err := db.AutoMigrate(&models.Post{}, &models.Profile{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Backend{db: db, storage: storage, logger: logger}, nil
}

// Storage exposes the object store for the /storage routes.
func (b *Backend) Storage() *Storage { return b.storage }

func (b *Backend) Provider() string { return "local" }

func (b *Backend) ListPosts(ctx context.Context, limit int, cursor backend.Cursor, tag string) ([]models.Post, backend.Cursor, error) {
	q := b.db.WithContext(ctx).Model(&models.Post{}).
		Order("created_at DESC, post_id DESC")

	if cursor != "" {
		key, err := backend.DecodeCursor(cursor)
		if err != nil {
			// A bad token restarts the listing from the top.
			b.logger.Warn("ignoring malformed cursor", zap.Error(err))
		} else {
			q = q.Where("(created_at, post_id) < (?, ?)", key.CreatedAt, key.PostID)
		}
	}

	var rows []models.Post
	if err := q.Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, "", fmt.Errorf("querying posts: %w", err)
	}

	var next backend.Cursor
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		next = backend.EncodeCursor(backend.PageKey{CreatedAt: last.CreatedAt, PostID: last.PostID})
	}

	// Tag filtering happens after the page query, like the managed-store
	// variants; a filtered page may carry fewer than limit items.
	items := make([]models.Post, 0, len(rows))
	for _, p := range rows {
		if tag != "" && !p.HasTag(tag) {
			continue
		}
		p.ImageURLs = b.imageURLs(p.ImageKeys)
		items = append(items, p)
	}
	return items, next, nil
}

func (b *Backend) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	err := b.db.WithContext(ctx).First(&post, "post_id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching post: %w", err)
	}
	post.ImageURLs = b.imageURLs(post.ImageKeys)
	return &post, nil
}

func (b *Backend) CreatePost(ctx context.Context, post *models.Post) error {
	if err := b.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("creating post: %w", err)
	}
	post.ImageURLs = b.imageURLs(post.ImageKeys)
	return nil
}

func (b *Backend) DeletePost(ctx context.Context, post *models.Post) error {
	res := b.db.WithContext(ctx).Delete(&models.Post{}, "post_id = ?", post.PostID)
	if res.Error != nil {
		return fmt.Errorf("deleting post: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return backend.ErrNotFound
	}

	// Image cleanup is fire-and-forget: failures are logged, never retried
	// here, and never fail the post delete.
	keys := post.ImageKeys
	go func() {
		for _, key := range keys {
			if err := b.storage.Remove(key); err != nil {
				b.logger.Error("failed to delete image", zap.String("key", key), zap.String("postId", post.PostID), zap.Error(err))
			}
		}
	}()
	return nil
}

func (b *Backend) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := b.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	return &profile, nil
}

func (b *Backend) GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	if len(userIDs) == 0 {
		return map[string]models.Profile{}, nil
	}
	var rows []models.Profile
	if err := b.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetching profiles: %w", err)
	}
	profiles := make(map[string]models.Profile, len(rows))
	for _, p := range rows {
		profiles[p.UserID] = p
	}
	return profiles, nil
}

func (b *Backend) UpsertProfile(ctx context.Context, userID, nickname string) (*models.Profile, error) {
	now := models.Now()
	profile := models.Profile{UserID: userID, Nickname: nickname, CreatedAt: now, UpdatedAt: now}

	existing, err := b.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		profile.CreatedAt = existing.CreatedAt
	}

	if err := b.db.WithContext(ctx).Save(&profile).Error; err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	return &profile, nil
}

func (b *Backend) CreateUploadURLs(_ context.Context, userID string, count int) (*models.UploadURLsResponse, error) {
	postID := uuid.NewString()
	urls := make([]models.UploadURL, 0, count)
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("images/%s-%d-%s.jpeg", postID, i, randomHex(8))
		urls = append(urls, models.UploadURL{Key: key, URL: b.storage.SignPutURL(key)})
	}
	b.logger.Info("upload URLs generated",
		zap.String("postId", postID), zap.Int("count", count), zap.String("userId", userID))
	return &models.UploadURLsResponse{PostID: postID, URLs: urls, ExpiresIn: b.storage.ExpirySeconds()}, nil
}

func (b *Backend) imageURLs(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		urls = append(urls, b.storage.DownloadURL(key))
	}
	return urls
}

func randomHex(n int) string {
	u := uuid.New()
	return fmt.Sprintf("%x", u[:n])
}

var _ backend.Backend = (*Backend)(nil)
