// Package gcp is the managed-cloud Backend: posts and profiles in
// Firestore, images in Cloud Storage behind V4 signed URLs.
package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/models"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/retry"
)

const (
	postsCollection    = "posts"
	profilesCollection = "profiles"

	uploadExpiry  = 5 * time.Minute
	displayExpiry = time.Hour

	cleanupAttempts = 3
	cleanupBaseWait = 200 * time.Millisecond
)

type Backend struct {
	fs     *firestore.Client
	gcs    *storage.Client
	bucket string
	logger *zap.Logger
}

func New(ctx context.Context, projectID, bucket string, logger *zap.Logger) (*Backend, error) {
	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("initializing firestore client: %w", err)
	}
	gcs, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing storage client: %w", err)
	}
	return &Backend{fs: fs, gcs: gcs, bucket: bucket, logger: logger}, nil
}

func (b *Backend) Close() error {
	if err := b.fs.Close(); err != nil {
		return err
	}
	return b.gcs.Close()
}

func (b *Backend) Provider() string { return "gcp" }

func (b *Backend) ListPosts(ctx context.Context, limit int, cursor backend.Cursor, tag string) ([]models.Post, backend.Cursor, error) {
	q := b.fs.Collection(postsCollection).
		OrderBy("createdAt", firestore.Desc).
		OrderBy("postId", firestore.Desc)

	if tag != "" {
		q = q.Where("tags", "array-contains", tag)
	}
	if cursor != "" {
		key, err := backend.DecodeCursor(cursor)
		if err != nil {
			b.logger.Warn("ignoring malformed cursor", zap.Error(err))
		} else {
			q = q.StartAfter(key.CreatedAt, key.PostID)
		}
	}

	// Fetch one extra row so an exactly-full final page does not hand out
	// a cursor to an empty page.
	iter := q.Limit(limit + 1).Documents(ctx)
	defer iter.Stop()

	var items []models.Post
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("iterating posts: %w", err)
		}
		var post models.Post
		if err := doc.DataTo(&post); err != nil {
			return nil, "", fmt.Errorf("decoding post %s: %w", doc.Ref.ID, err)
		}
		items = append(items, post)
	}

	var next backend.Cursor
	if len(items) > limit {
		items = items[:limit]
		last := items[limit-1]
		next = backend.EncodeCursor(backend.PageKey{CreatedAt: last.CreatedAt, PostID: last.PostID})
	}
	for i := range items {
		items[i].ImageURLs = b.signedImageURLs(items[i].ImageKeys, items[i].PostID)
	}
	return items, next, nil
}

func (b *Backend) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	doc, err := b.fs.Collection(postsCollection).Doc(postID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching post: %w", err)
	}
	var post models.Post
	if err := doc.DataTo(&post); err != nil {
		return nil, fmt.Errorf("decoding post: %w", err)
	}
	post.ImageURLs = b.signedImageURLs(post.ImageKeys, post.PostID)
	return &post, nil
}

func (b *Backend) CreatePost(ctx context.Context, post *models.Post) error {
	_, err := b.fs.Collection(postsCollection).Doc(post.PostID).Set(ctx, post)
	if err != nil {
		return fmt.Errorf("creating post: %w", err)
	}
	post.ImageURLs = b.signedImageURLs(post.ImageKeys, post.PostID)
	return nil
}

func (b *Backend) DeletePost(ctx context.Context, post *models.Post) error {
	_, err := b.fs.Collection(postsCollection).Doc(post.PostID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}

	// Object deletes are fire-and-forget with backoff; a leftover object is
	// preferable to a post that refuses to die.
	keys := post.ImageKeys
	postID := post.PostID
	go func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, key := range keys {
			obj := b.gcs.Bucket(b.bucket).Object(key)
			err := retry.Do(cleanupCtx, cleanupAttempts, cleanupBaseWait, func() error {
				return obj.Delete(cleanupCtx)
			})
			if err != nil {
				b.logger.Error("failed to delete image",
					zap.String("key", key), zap.String("postId", postID), zap.Error(err))
			}
		}
	}()
	return nil
}

func (b *Backend) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	doc, err := b.fs.Collection(profilesCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	var profile models.Profile
	if err := doc.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &profile, nil
}

func (b *Backend) GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	if len(userIDs) == 0 {
		return map[string]models.Profile{}, nil
	}
	refs := make([]*firestore.DocumentRef, 0, len(userIDs))
	for _, id := range userIDs {
		refs = append(refs, b.fs.Collection(profilesCollection).Doc(id))
	}
	docs, err := b.fs.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("fetching profiles: %w", err)
	}
	profiles := make(map[string]models.Profile, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var profile models.Profile
		if err := doc.DataTo(&profile); err != nil {
			return nil, fmt.Errorf("decoding profile %s: %w", doc.Ref.ID, err)
		}
		profiles[profile.UserID] = profile
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

	if _, err := b.fs.Collection(profilesCollection).Doc(userID).Set(ctx, &profile); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	return &profile, nil
}

func (b *Backend) CreateUploadURLs(_ context.Context, userID string, count int) (*models.UploadURLsResponse, error) {
	postID := uuid.NewString()
	urls := make([]models.UploadURL, 0, count)
	for i := 0; i < count; i++ {
		u := uuid.New()
		key := fmt.Sprintf("images/%s-%d-%x.jpeg", postID, i, u[:8])
		url, err := b.gcs.Bucket(b.bucket).SignedURL(key, &storage.SignedURLOptions{
			Method:      "PUT",
			Expires:     time.Now().Add(uploadExpiry),
			ContentType: "image/jpeg",
			Scheme:      storage.SigningSchemeV4,
		})
		if err != nil {
			return nil, fmt.Errorf("signing upload URL: %w", err)
		}
		urls = append(urls, models.UploadURL{Key: key, URL: url})
	}
	b.logger.Info("upload URLs generated",
		zap.String("postId", postID), zap.Int("count", count), zap.String("userId", userID))
	return &models.UploadURLsResponse{PostID: postID, URLs: urls, ExpiresIn: int(uploadExpiry / time.Second)}, nil
}

// signedImageURLs produces short-lived GET URLs for display. Signing
// failures degrade to a post without image URLs rather than failing the
// listing.
func (b *Backend) signedImageURLs(keys []string, postID string) []string {
	if len(keys) == 0 {
		return nil
	}
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		url, err := b.gcs.Bucket(b.bucket).SignedURL(key, &storage.SignedURLOptions{
			Method:  "GET",
			Expires: time.Now().Add(displayExpiry),
			Scheme:  storage.SigningSchemeV4,
		})
		if err != nil {
			b.logger.Error("failed to sign image URL",
				zap.String("key", key), zap.String("postId", postID), zap.Error(err))
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

var _ backend.Backend = (*Backend)(nil)
