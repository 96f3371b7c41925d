package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/apperr"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/middleware"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/models"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/validation"
)

type PostHandler struct {
	backend backend.Backend
	logger  *zap.Logger
}

// ListPosts handles GET /posts (public)
func (h *PostHandler) ListPosts(c *gin.Context) {
	limit := validation.ParseLimit(c.Query("limit"))
	cursor := backend.Cursor(c.Query("nextToken"))
	tag := c.Query("tag")

	items, next, err := h.backend.ListPosts(c.Request.Context(), limit, cursor, tag)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []models.Post{}
	}
	h.enrichNicknames(c, items)

	h.logger.Info("posts retrieved",
		zap.Int("count", len(items)), zap.Bool("hasMore", next != ""), zap.String("tag", tag))
	c.JSON(http.StatusOK, models.ListPostsResponse{Items: items, Limit: limit, NextToken: string(next)})
}

// GetPost handles GET /posts/:postId (public)
func (h *PostHandler) GetPost(c *gin.Context) {
	postID := c.Param("postId")
	if err := validation.ValidatePostID(postID); err != nil {
		writeError(c, h.logger, err)
		return
	}

	post, err := h.backend.GetPost(c.Request.Context(), postID)
	if errors.Is(err, backend.ErrNotFound) {
		writeError(c, h.logger, apperr.NotFound("Post not found"))
		return
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	item := []models.Post{*post}
	h.enrichNicknames(c, item)
	c.JSON(http.StatusOK, gin.H{"item": item[0]})
}

// enrichNicknames overrides each post's stored nickname with the author's
// current profile nickname. The stored value stays as the fallback, so a
// profile-store failure degrades to stale names instead of an error.
func (h *PostHandler) enrichNicknames(c *gin.Context, items []models.Post) {
	if len(items) == 0 {
		return
	}
	userIDs := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, p := range items {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		userIDs = append(userIDs, p.UserID)
	}

	profiles, err := h.backend.GetProfiles(c.Request.Context(), userIDs)
	if err != nil {
		h.logger.Warn("nickname enrichment skipped", zap.Error(err))
		return
	}
	for i := range items {
		if profile, ok := profiles[items[i].UserID]; ok && profile.Nickname != "" {
			items[i].Nickname = profile.Nickname
		}
	}
}

// CreatePost handles POST /posts (requires authentication)
func (h *PostHandler) CreatePost(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}
	if err := validation.ValidateCreatePost(&req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	post := models.Post{
		PostID:     uuid.NewString(),
		UserID:     user.UserID,
		Content:    req.Content,
		IsMarkdown: req.IsMarkdown,
		ImageKeys:  req.ImageKeys,
		Tags:       req.Tags,
		CreatedAt:  models.Now(),
	}

	// Display name: stored profile wins, token claim is the fallback.
	post.Nickname = user.Nickname
	if profile, err := h.backend.GetProfile(c.Request.Context(), user.UserID); err == nil && profile != nil && profile.Nickname != "" {
		post.Nickname = profile.Nickname
	}

	if err := h.backend.CreatePost(c.Request.Context(), &post); err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("post created",
		zap.String("postId", post.PostID), zap.String("userId", user.UserID), zap.Int("imageCount", len(post.ImageKeys)))
	c.JSON(http.StatusCreated, gin.H{"item": post})
}

// DeletePost handles DELETE /posts/:postId (owner or admin only)
func (h *PostHandler) DeletePost(c *gin.Context) {
	user := middleware.CurrentUser(c)

	postID := c.Param("postId")
	if err := validation.ValidatePostID(postID); err != nil {
		writeError(c, h.logger, err)
		return
	}

	post, err := h.backend.GetPost(c.Request.Context(), postID)
	if errors.Is(err, backend.ErrNotFound) {
		writeError(c, h.logger, apperr.NotFound("Post not found"))
		return
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	if post.UserID != user.UserID && !user.IsAdmin() {
		h.logger.Warn("unauthorized delete attempt",
			zap.String("attemptedBy", user.UserID), zap.String("postOwner", post.UserID), zap.String("postId", postID))
		writeError(c, h.logger, apperr.Authorization("Only the post owner or an admin can delete a post"))
		return
	}

	if err := h.backend.DeletePost(c.Request.Context(), post); err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("post deleted", zap.String("postId", postID), zap.String("userId", user.UserID))
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted", "postId": postID})
}
