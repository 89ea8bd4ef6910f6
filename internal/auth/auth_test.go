package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
)

func identityEcho(t *testing.T) (http.Handler, *Identity) {
	t.Helper()

	var captured Identity
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		captured = id
		w.WriteHeader(http.StatusOK)
	})
	return h, &captured
}

func TestRequireWithValidToken(t *testing.T) {
	a := New("test-secret", logging.NewNop())
	token, err := a.IssueToken("user-1", "Alice", time.Minute)
	require.NoError(t, err)

	h, captured := identityEcho(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	a.Require(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", captured.UserID)
	assert.Equal(t, "Alice", captured.DisplayName)
	assert.False(t, captured.Anonymous)
}

func TestRequireRejectsMissingAndBadTokens(t *testing.T) {
	a := New("test-secret", logging.NewNop())
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	for _, header := range []string{"", "Bearer garbage", "Basic abc"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		a.Require(h).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestRequireRejectsExpiredToken(t *testing.T) {
	a := New("test-secret", logging.NewNop())
	token, err := a.IssueToken("user-1", "Alice", -time.Minute)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	a.Require(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRejectsWrongSecret(t *testing.T) {
	other := New("other-secret", logging.NewNop())
	token, err := other.IssueToken("user-1", "Alice", time.Minute)
	require.NoError(t, err)

	a := New("test-secret", logging.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	a.Require(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalFallsBackToAnonymous(t *testing.T) {
	a := New("test-secret", logging.NewNop())

	h, captured := identityEcho(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	a.Optional(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, captured.Anonymous)
	assert.Equal(t, domain.AnonymousUser, captured.UserID)
}

func TestOptionalUsesTokenWhenPresent(t *testing.T) {
	a := New("test-secret", logging.NewNop())
	token, err := a.IssueToken("user-2", "Bob", time.Minute)
	require.NoError(t, err)

	h, captured := identityEcho(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	a.Optional(h).ServeHTTP(rec, req)

	assert.Equal(t, "user-2", captured.UserID)
	assert.False(t, captured.Anonymous)
}
