package creatio

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFetchAndCache(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		require.Equal(t, "id-1", r.PostForm.Get("client_id"))
		require.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
		fmt.Fprintf(w, `{"access_token":"token-%d","expires_in":3600}`, calls)
	}))
	defer server.Close()

	provider := NewTokenProvider(server.URL, "id-1", "secret-1", server.Client())

	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	// Second call inside the cache window reuses the token.
	token, err = provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, 1, calls)

	// Invalidation forces a refetch.
	provider.Invalidate()
	token, err = provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
	assert.Equal(t, 2, calls)
}

func TestTokenUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	provider := NewTokenProvider(server.URL, "id", "wrong", server.Client())
	_, err := provider.Token(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid_client")
}

func TestTokenMissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	provider := NewTokenProvider(server.URL, "id", "secret", server.Client())
	_, err := provider.Token(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access_token")
}
