package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientSendsTokenAndIdempotency(t *testing.T) {
	var (
		gotAuth, gotIdem, gotPath string
		gotBody                   map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotIdem = r.Header.Get("Idempotency-Key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order_id":"o-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", " tok ")
	out, err := c.PlaceOrder(context.Background(), "NIMBUS", "buy", "idem-1", 25_000)
	require.NoError(t, err)
	require.Equal(t, "o-1", out["order_id"])
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "idem-1", gotIdem)
	require.Equal(t, "/v1/orders", gotPath)
	require.Equal(t, float64(25_000), gotBody["quantity_units"])
}

func TestClientEscapesPathAndQuery(t *testing.T) {
	var gotURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Feed(context.Background(), "hts", "NIMBUS", 5)
	require.NoError(t, err)
	require.Equal(t, "/v1/feed/hts?limit=5&symbol=NIMBUS", gotURI)
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"market is closed"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Dashboard(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.Equal(t, "market is closed", apiErr.Message)

	require.Equal(t, "plain text", errorMessage([]byte(" plain text ")))
}

func TestProfileRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := LoadProfile()
	require.NoError(t, err)
	require.Equal(t, Profile{}, p)

	require.NoError(t, SaveProfile(Profile{APIBaseURL: "http://game.local:8080/ ", APIToken: " abc "}))
	info, err := os.Stat(filepath.Join(home, ".mlx", "profile.json"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	p, err = LoadProfile()
	require.NoError(t, err)
	require.Equal(t, Profile{APIBaseURL: "http://game.local:8080", APIToken: "abc"}, p)

	require.NoError(t, ClearProfile())
	require.NoError(t, ClearProfile())
}

func TestResolve(t *testing.T) {
	p := Profile{APIBaseURL: "http://profile", APIToken: "ptok"}
	base, tok := Resolve("", "", "", "", p)
	require.Equal(t, "http://profile", base)
	require.Equal(t, "ptok", tok)

	base, tok = Resolve("http://flag/", "", "http://env", "etok", p)
	require.Equal(t, "http://flag", base)
	require.Equal(t, "etok", tok)

	base, tok = Resolve("", "", "", "", Profile{})
	require.Equal(t, "http://localhost:8080", base)
	require.Empty(t, tok)
}
