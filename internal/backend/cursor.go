package backend

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// PageKey is the position a cursor encodes: the sort key of the last item
// on the previous page. Ordering is (createdAt DESC, postId DESC), so the
// pair identifies a unique position even across identical timestamps.
type PageKey struct {
	CreatedAt string `json:"createdAt"`
	PostID    string `json:"postId"`
}

// EncodeCursor packs a page key into an opaque token.
func EncodeCursor(key PageKey) Cursor {
	raw, _ := json.Marshal(key)
	return Cursor(base64.StdEncoding.EncodeToString(raw))
}

// DecodeCursor unpacks a token. Callers treat a decode failure as "start
// from the top" after logging it, matching how malformed tokens have always
// been handled.
func DecodeCursor(c Cursor) (PageKey, error) {
	var key PageKey
	raw, err := base64.StdEncoding.DecodeString(string(c))
	if err != nil {
		return key, fmt.Errorf("decoding cursor: %w", err)
	}
	if err := json.Unmarshal(raw, &key); err != nil {
		return key, fmt.Errorf("decoding cursor: %w", err)
	}
	if key.CreatedAt == "" || key.PostID == "" {
		return key, fmt.Errorf("decoding cursor: missing fields")
	}
	return key, nil
}
