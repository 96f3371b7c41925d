package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/auth"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend/local"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend/memory"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/config"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/handlers"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/middleware"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/server"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	r, _ := newTestRouterWithLimit(t, 1000)
	return r
}

func newTestRouterWithLimit(t *testing.T, rateLimit int) (*gin.Engine, *local.Storage) {
	t.Helper()
	cfg := &config.Config{Port: "8080", AllowedOrigins: []string{"*"}}
	logger := zap.NewNop()
	limiter := middleware.NewRateLimiter(nil, rateLimit, time.Minute, logger)
	store := local.NewStorage(t.TempDir(), testSecret, 5*time.Minute)
	storageH := handlers.NewStorageHandler(store, logger)
	r := server.NewRouter(cfg, memory.New(), auth.NewJWTVerifier(testSecret, ""), limiter, storageH, logger)
	return r, store
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return raw
}

func userToken(t *testing.T, sub string) string {
	return token(t, jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()})
}

func adminToken(t *testing.T, sub string) string {
	return token(t, jwt.MapClaims{
		"sub": sub, "groups": []string{"Admins"}, "exp": time.Now().Add(time.Hour).Unix(),
	})
}

func do(r *gin.Engine, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func createPost(t *testing.T, r *gin.Engine, bearer, content string, tags []string) string {
	t.Helper()
	w := do(r, http.MethodPost, "/api/posts", bearer, gin.H{"content": content, "tags": tags})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode(t, w)["item"].(map[string]any)
	return item["postId"].(string)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := do(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["provider"])
}

func TestListPostsEmpty(t *testing.T) {
	r := newTestRouter(t)
	w := do(r, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{}, body["items"])
	assert.Equal(t, float64(20), body["limit"])
	assert.NotContains(t, body, "nextToken")
}

func TestCreatePost(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/posts", userToken(t, "user-1"), gin.H{
		"content": "hello", "tags": []string{"go"}, "isMarkdown": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode(t, w)["item"].(map[string]any)
	assert.Equal(t, "hello", item["content"])
	assert.Equal(t, "user-1", item["userId"])
	assert.Equal(t, true, item["isMarkdown"])
	assert.NotEmpty(t, item["postId"])
	assert.NotEmpty(t, item["createdAt"])

	list := decode(t, do(r, http.MethodGet, "/api/posts", "", nil))
	assert.Len(t, list["items"], 1)
}

func TestCreatePostRejections(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/posts", "", gin.H{"content": "hello"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/posts", "not.a.token", gin.H{"content": "hello"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid token", decode(t, w)["message"])

	w = do(r, http.MethodPost, "/api/posts", userToken(t, "user-1"), gin.H{"content": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/posts", userToken(t, "user-1"), gin.H{
		"content": strings.Repeat("a", 5001),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePostUsesProfileNickname(t *testing.T) {
	r := newTestRouter(t)
	bearer := userToken(t, "user-1")

	w := do(r, http.MethodPost, "/api/profile", bearer, gin.H{"nickname": "Alice"})
	require.Equal(t, http.StatusOK, w.Code)

	postID := createPost(t, r, bearer, "with nickname", nil)
	w = do(r, http.MethodGet, "/api/posts/"+postID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	item := decode(t, w)["item"].(map[string]any)
	assert.Equal(t, "Alice", item["nickname"])
}

func TestRenamedNicknameShowsOnOldPosts(t *testing.T) {
	r := newTestRouter(t)
	bearer := userToken(t, "user-1")

	w := do(r, http.MethodPost, "/api/profile", bearer, gin.H{"nickname": "OldName"})
	require.Equal(t, http.StatusOK, w.Code)
	postID := createPost(t, r, bearer, "written before the rename", nil)

	w = do(r, http.MethodPost, "/api/profile", bearer, gin.H{"nickname": "NewName"})
	require.Equal(t, http.StatusOK, w.Code)

	// Display names come from the profile at read time, not from the
	// value stamped into the post at create time.
	w = do(r, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "NewName", items[0].(map[string]any)["nickname"])

	w = do(r, http.MethodGet, "/api/posts/"+postID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	item := decode(t, w)["item"].(map[string]any)
	assert.Equal(t, "NewName", item["nickname"])
}

func TestGetPost(t *testing.T) {
	r := newTestRouter(t)
	postID := createPost(t, r, userToken(t, "user-1"), "hello", nil)

	w := do(r, http.MethodGet, "/api/posts/"+postID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	item := decode(t, w)["item"].(map[string]any)
	assert.Equal(t, "hello", item["content"])

	w = do(r, http.MethodGet, "/api/posts/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/posts/0b8a4b3e-1111-2222-3333-444455556666", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePost(t *testing.T) {
	r := newTestRouter(t)
	owner := userToken(t, "user-1")
	postID := createPost(t, r, owner, "to delete", nil)

	w := do(r, http.MethodDelete, "/api/posts/"+postID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodDelete, "/api/posts/"+postID, userToken(t, "user-2"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodDelete, "/api/posts/"+postID, owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, postID, decode(t, w)["postId"])

	w = do(r, http.MethodGet, "/api/posts/"+postID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodDelete, "/api/posts/"+postID, owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminCanDeleteOthersPost(t *testing.T) {
	r := newTestRouter(t)
	postID := createPost(t, r, userToken(t, "user-1"), "admin target", nil)

	w := do(r, http.MethodDelete, "/api/posts/"+postID, adminToken(t, "admin-1"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListPostsPaginationOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	bearer := userToken(t, "user-1")
	for i := 0; i < 5; i++ {
		createPost(t, r, bearer, fmt.Sprintf("post %d", i), nil)
	}

	seen := make(map[string]bool)
	path := "/api/posts?limit=2"
	for {
		w := do(r, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		for _, raw := range body["items"].([]any) {
			id := raw.(map[string]any)["postId"].(string)
			assert.False(t, seen[id])
			seen[id] = true
		}
		next, _ := body["nextToken"].(string)
		if next == "" {
			break
		}
		path = "/api/posts?limit=2&nextToken=" + url.QueryEscape(next)
	}
	assert.Len(t, seen, 5)
}

func TestListPostsTagFilterOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	bearer := userToken(t, "user-1")
	createPost(t, r, bearer, "tagged", []string{"go"})
	createPost(t, r, bearer, "plain", nil)

	w := do(r, http.MethodGet, "/api/posts?tag=go", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "tagged", items[0].(map[string]any)["content"])
}

func TestUploadURLs(t *testing.T) {
	r := newTestRouter(t)
	bearer := userToken(t, "user-1")

	w := do(r, http.MethodGet, "/api/upload-urls?count=3", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["postId"])
	assert.Equal(t, float64(300), body["expiresIn"])
	assert.Len(t, body["urls"], 3)

	w = do(r, http.MethodPost, "/api/upload-urls", bearer, gin.H{"count": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["urls"], 2)

	w = do(r, http.MethodGet, "/api/upload-urls", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["urls"], 1)

	for _, path := range []string{"/api/upload-urls?count=0", "/api/upload-urls?count=17", "/api/upload-urls?count=x"} {
		w = do(r, http.MethodGet, path, bearer, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}

	w = do(r, http.MethodGet, "/api/upload-urls", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfile(t *testing.T) {
	r := newTestRouter(t)
	bearer := userToken(t, "user-1")

	w := do(r, http.MethodGet, "/api/profile", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "user-1", body["userId"])
	assert.Equal(t, "", body["nickname"])

	w = do(r, http.MethodPost, "/api/profile", bearer, gin.H{"nickname": "  Alice  "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alice", decode(t, w)["nickname"])

	w = do(r, http.MethodGet, "/api/profile", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alice", decode(t, w)["nickname"])

	w = do(r, http.MethodPost, "/api/profile", bearer, gin.H{"nickname": strings.Repeat("x", 51)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionCookieAuth(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "__session", Value: userToken(t, "user-1")})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", decode(t, w)["userId"])
}

func TestStorageUploadRoundTrip(t *testing.T) {
	r, store := newTestRouterWithLimit(t, 1000)

	signed := store.SignPutURL("images/a.jpeg")
	req := httptest.NewRequest(http.MethodPut, signed, strings.NewReader("jpeg bytes"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/storage/images/a.jpeg", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg bytes", w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	w = do(r, http.MethodGet, "/storage/images/missing.jpeg", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	forged := strings.Replace(signed, "token=", "token=00", 1)
	req = httptest.NewRequest(http.MethodPut, forged, strings.NewReader("x"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStorageRejectsOversizeUpload(t *testing.T) {
	r, store := newTestRouterWithLimit(t, 1000)

	signed := store.SignPutURL("images/big.jpeg")
	oversize := strings.NewReader(strings.Repeat("x", 7*1024*1024+1))
	req := httptest.NewRequest(http.MethodPut, signed, oversize)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// Nothing truncated must be left behind.
	w = do(r, http.MethodGet, "/storage/images/big.jpeg", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	r, _ := newTestRouterWithLimit(t, 2)

	for i := 0; i < 2; i++ {
		w := do(r, http.MethodGet, "/api/posts", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(r, http.MethodGet, "/api/posts", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests", decode(t, w)["message"])
}

func TestSecurityHeaders(t *testing.T) {
	r := newTestRouter(t)
	w := do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
