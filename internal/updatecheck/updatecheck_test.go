package updatecheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// tagServer serves a fixed tag list for acme/pagepilot.
func tagServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/pagepilot/tags", r.URL.Path)
		assert.Equal(t, "30", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newChecker(t *testing.T, srv *httptest.Server) *Checker {
	t.Helper()
	c, err := New("acme/pagepilot",
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return c
}

func TestCheck(t *testing.T) {
	srv := tagServer(t, http.StatusOK, `[{"name":"v1.2.0"},{"name":"nightly"},{"name":"v1.10.1"},{"name":"1.9.0"}]`)
	c := newChecker(t, srv)

	tests := []struct {
		name       string
		current    string
		wantUpdate bool
	}{
		{"older build", "1.2.0", true},
		{"prefixed older build", "v1.9.9", true},
		{"current build", "1.10.1", false},
		{"newer build", "2.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Check(context.Background(), tt.current)
			require.NoError(t, err)
			assert.Equal(t, "1.10.1", res.Latest, "highest semver tag wins over list order")
			assert.Equal(t, tt.wantUpdate, res.UpdateAvailable)
			assert.False(t, res.Skipped)
		})
	}
}

func TestCheck_DevBuildSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()
	c := newChecker(t, srv)

	res, err := c.Check(context.Background(), DevVersion)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Contains(t, res.String(), "update check skipped")
}

func TestCheck_Errors(t *testing.T) {
	t.Run("invalid local version", func(t *testing.T) {
		c := newChecker(t, tagServer(t, http.StatusOK, `[]`))
		_, err := c.Check(context.Background(), "banana")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a semantic version")
	})

	t.Run("no semver tags", func(t *testing.T) {
		srv := tagServer(t, http.StatusOK, `[{"name":"latest"}]`)
		_, err := newChecker(t, srv).Check(context.Background(), "1.0.0")
		assert.ErrorIs(t, err, ErrNoReleases)
	})

	t.Run("api failure", func(t *testing.T) {
		srv := tagServer(t, http.StatusNotFound, `{"message":"Not Found"}`)
		_, err := newChecker(t, srv).Check(context.Background(), "1.0.0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to list tags of acme/pagepilot")
	})
}

func TestNew_RejectsMalformedRepository(t *testing.T) {
	for _, repo := range []string{"", "pagepilot", "/pagepilot", "acme/", "a/b/c"} {
		_, err := New(repo)
		assert.Error(t, err, repo)
	}
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "UPDATE AVAILABLE: v1.0.0 -> v1.1.0",
		Result{Current: "1.0.0", Latest: "1.1.0", UpdateAvailable: true}.String())
	assert.Equal(t, "pagepilot v1.1.0 is up to date",
		Result{Current: "1.1.0", Latest: "1.1.0"}.String())
}
