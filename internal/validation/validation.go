// Package validation holds the pure request validators. Limits match the
// managed-store variants of the service so clients behave identically
// against every backend.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/apperr"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/models"
)

const (
	MaxContentLength = 5000
	MaxImagesPerPost = 16
	MaxTagsPerPost   = 100
	MaxTagLength     = 50

	MinNicknameLength = 1
	MaxNicknameLength = 50

	MaxUploadCount = 16

	MaxListLimit     = 50
	DefaultListLimit = 20
)

var (
	// Tags allow word characters, dash, dot and Japanese scripts.
	tagPattern = regexp.MustCompile(`^[\w\-.ぁ-んァ-ヶー一-龯]{1,50}$`)

	// Image keys must look like keys this service issued:
	// images/<uuid>-<index>-<16 hex>.jpeg
	imageKeyPattern = regexp.MustCompile(`^images/[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}-\d+-[a-f0-9]{16}\.jpeg$`)

	dangerousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script.*?>.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
	}
)

// ValidateCreatePost checks a create-post body and returns a single 400
// error joining every failed check, or nil when the body is acceptable.
func ValidateCreatePost(req *models.CreatePostRequest) error {
	var problems []string

	if req.Content == "" {
		problems = append(problems, "content is required")
	} else if len([]rune(req.Content)) > MaxContentLength {
		problems = append(problems, fmt.Sprintf("content too long (max %d chars)", MaxContentLength))
	}
	for _, p := range dangerousPatterns {
		if p.MatchString(req.Content) {
			problems = append(problems, "content contains potentially unsafe patterns")
			break
		}
	}

	problems = append(problems, validateTags(req.Tags)...)
	problems = append(problems, validateImageKeys(req.ImageKeys)...)

	if len(problems) > 0 {
		return apperr.Validation(strings.Join(problems, ", "))
	}
	return nil
}

func validateTags(tags []string) []string {
	var problems []string
	if len(tags) > MaxTagsPerPost {
		problems = append(problems, fmt.Sprintf("too many tags (max %d)", MaxTagsPerPost))
	}
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if !tagPattern.MatchString(tag) {
			problems = append(problems, fmt.Sprintf("invalid tag format (1-%d chars, alphanumeric and Japanese allowed)", MaxTagLength))
			break
		}
	}
	for _, tag := range tags {
		if _, dup := seen[tag]; dup {
			problems = append(problems, "duplicate tags are not allowed")
			break
		}
		seen[tag] = struct{}{}
	}
	return problems
}

func validateImageKeys(keys []string) []string {
	var problems []string
	if len(keys) > MaxImagesPerPost {
		problems = append(problems, fmt.Sprintf("too many images (max %d)", MaxImagesPerPost))
	}
	for _, key := range keys {
		if !imageKeyPattern.MatchString(key) {
			problems = append(problems, "invalid image key format")
			break
		}
	}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			problems = append(problems, "duplicate image keys are not allowed")
			break
		}
		seen[key] = struct{}{}
	}
	return problems
}

// ValidateNickname trims and bounds-checks a nickname.
func ValidateNickname(raw string) (string, error) {
	nickname := strings.TrimSpace(raw)
	if len([]rune(nickname)) < MinNicknameLength {
		return "", apperr.Validation("nickname is required")
	}
	if len([]rune(nickname)) > MaxNicknameLength {
		return "", apperr.Validation(fmt.Sprintf("nickname too long (max %d chars)", MaxNicknameLength))
	}
	return nickname, nil
}

// ValidateUploadCount bounds the number of upload URLs per request.
func ValidateUploadCount(count int) error {
	if count < 1 || count > MaxUploadCount {
		return apperr.Validation(fmt.Sprintf("count must be between 1 and %d", MaxUploadCount))
	}
	return nil
}

// ValidatePostID requires a UUID-shaped post id.
func ValidatePostID(postID string) error {
	if _, err := uuid.Parse(postID); err != nil {
		return apperr.Validation("invalid postId format")
	}
	return nil
}

// ParseLimit clamps a raw ?limit= value into [1, MaxListLimit], falling
// back to the default on anything unparseable.
func ParseLimit(raw string) int {
	if raw == "" {
		return DefaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultListLimit
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	return n
}
