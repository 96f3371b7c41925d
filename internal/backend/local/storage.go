package local

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage keeps uploaded images on the local filesystem and stands in for a
// managed object store: PUT access is granted through HMAC-signed URLs with
// an expiry, served back through the /storage routes.
type Storage struct {
	dir    string
	secret []byte
	expiry time.Duration
}

func NewStorage(dir string, secret []byte, expiry time.Duration) *Storage {
	return &Storage{dir: dir, secret: secret, expiry: expiry}
}

// ExpirySeconds is the signed-URL lifetime reported to clients.
func (s *Storage) ExpirySeconds() int {
	return int(s.expiry / time.Second)
}

// SignPutURL returns a time-limited URL granting one PUT to key.
func (s *Storage) SignPutURL(key string) string {
	expires := time.Now().Add(s.expiry).Unix()
	token := s.token("PUT", key, expires)
	return fmt.Sprintf("/storage/%s?expires=%d&token=%s", key, expires, token)
}

// VerifyPut checks the signature and expiry presented with an upload.
func (s *Storage) VerifyPut(key, expiresRaw, token string) error {
	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expires parameter")
	}
	if time.Now().Unix() > expires {
		return fmt.Errorf("upload URL expired")
	}
	expected := s.token("PUT", key, expires)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return fmt.Errorf("invalid upload token")
	}
	return nil
}

// DownloadURL returns the public read path for a stored object.
func (s *Storage) DownloadURL(key string) string {
	return "/storage/" + key
}

func (s *Storage) Save(key string, r io.Reader) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating object file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing object: %w", err)
	}
	return f.Close()
}

func (s *Storage) Open(key string) (io.ReadCloser, error) {
	path, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *Storage) Remove(key string) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *Storage) token(method, key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", method, key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// objectPath maps a key under the storage dir, rejecting traversal.
func (s *Storage) objectPath(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key")
	}
	return filepath.Join(s.dir, clean), nil
}
