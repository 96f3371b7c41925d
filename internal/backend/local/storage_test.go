package local

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	return NewStorage(t.TempDir(), []byte("test-secret"), 5*time.Minute)
}

func parsePutURL(t *testing.T, raw string) (key, expires, token string) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return strings.TrimPrefix(u.Path, "/storage/"), u.Query().Get("expires"), u.Query().Get("token")
}

func TestSignAndVerifyPut(t *testing.T) {
	s := newTestStorage(t)

	key, expires, token := parsePutURL(t, s.SignPutURL("images/a.jpeg"))
	assert.Equal(t, "images/a.jpeg", key)
	assert.NoError(t, s.VerifyPut(key, expires, token))
}

func TestVerifyPutRejections(t *testing.T) {
	s := newTestStorage(t)
	key, expires, token := parsePutURL(t, s.SignPutURL("images/a.jpeg"))

	assert.Error(t, s.VerifyPut("images/other.jpeg", expires, token), "token is bound to the key")
	assert.Error(t, s.VerifyPut(key, expires, "deadbeef"), "forged token")
	assert.Error(t, s.VerifyPut(key, "not-a-number", token))

	past := fmt.Sprintf("%d", time.Now().Add(-time.Minute).Unix())
	assert.Error(t, s.VerifyPut(key, past, token), "expired")

	// Re-signing the expiry does not help without the secret.
	future := fmt.Sprintf("%d", time.Now().Add(24*time.Hour).Unix())
	assert.Error(t, s.VerifyPut(key, future, token), "expiry is covered by the signature")
}

func TestSaveOpenRemove(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.Save("images/a.jpeg", strings.NewReader("jpeg bytes")))

	r, err := s.Open("images/a.jpeg")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	require.NoError(t, s.Remove("images/a.jpeg"))
	_, err = s.Open("images/a.jpeg")
	assert.Error(t, err)
}

func TestRejectsTraversal(t *testing.T) {
	s := newTestStorage(t)

	err := s.Save("../outside.txt", strings.NewReader("x"))
	assert.Error(t, err)

	_, err = s.Open("images/../../etc/passwd")
	assert.Error(t, err)
}

func TestExpirySeconds(t *testing.T) {
	s := NewStorage(t.TempDir(), []byte("x"), 300*time.Second)
	assert.Equal(t, 300, s.ExpirySeconds())
}
