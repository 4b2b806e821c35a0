package storage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testStore(t *testing.T) *LocalObjectStore {
	t.Helper()
	return NewLocalObjectStore(t.TempDir(), "https://app.faktugo.com", "secreto", zap.NewNop())
}

func TestPutReadDelete(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	key := "owner-1/2025-02/abc.pdf"

	require.NoError(t, store.Put(ctx, key, []byte("%PDF-1.4")))

	content, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), content)

	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Read(ctx, key)
	assert.Error(t, err)
}

func TestDeleteMissingObjectIsIdempotent(t *testing.T) {
	store := testStore(t)
	assert.NoError(t, store.Delete(context.Background(), "owner-1/2025-02/nope.pdf"))
}

func TestKeyCannotEscapeBaseDir(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, key := range []string{
		"../outside.pdf",
		"owner-1/../../outside.pdf",
	} {
		assert.Error(t, store.Put(ctx, key, []byte("x")), key)
		_, err := store.Read(ctx, key)
		assert.Error(t, err, key)
	}
}

func TestSignURLRoundTrip(t *testing.T) {
	store := testStore(t)
	fixed := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	key := "owner-1/2025-02/abc.pdf"
	signed, err := store.SignURL(key, time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "app.faktugo.com", u.Host)
	assert.Equal(t, "/files/"+key, u.Path)

	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Hour).Unix(), expires)

	assert.NoError(t, store.VerifySignature(key, expires, u.Query().Get("sig")))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	store := testStore(t)
	fixed := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	key := "owner-1/2025-02/abc.pdf"
	signed, err := store.SignURL(key, time.Hour)
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)
	expires, _ := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	sig := u.Query().Get("sig")

	assert.Error(t, store.VerifySignature("owner-2/2025-02/abc.pdf", expires, sig),
		"signature is bound to the key")
	assert.Error(t, store.VerifySignature(key, expires+60, sig),
		"signature is bound to the expiry")
	assert.Error(t, store.VerifySignature(key, expires, "deadbeef"))
}

func TestVerifySignatureRejectsExpired(t *testing.T) {
	store := testStore(t)
	fixed := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	key := "owner-1/2025-02/abc.pdf"
	signed, err := store.SignURL(key, time.Hour)
	require.NoError(t, err)
	u, _ := url.Parse(signed)
	expires, _ := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	sig := u.Query().Get("sig")

	store.now = func() time.Time { return fixed.Add(2 * time.Hour) }
	err = store.VerifySignature(key, expires, sig)
	require.Error(t, err)
	assert.Contains(t, fmt.Sprint(err), "expired")
}
