package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/switchyard/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GitHubConfig{APIURL: srv.URL, Token: "test-token"})
}

func TestAuthStatus(t *testing.T) {
	t.Run("authenticated", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/user", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]string{"login": "octocat"})
		}))

		status := c.AuthStatus(context.Background())
		assert.True(t, status.Authenticated)
		assert.Equal(t, "octocat", status.Login)
	})

	t.Run("bad token degrades to unauthenticated", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
		}))

		status := c.AuthStatus(context.Background())
		assert.False(t, status.Authenticated)
	})

	t.Run("no token short-circuits", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		called := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		c := NewClient(config.GitHubConfig{APIURL: srv.URL})
		if c.token != "" {
			t.Skip("ambient gh credentials present")
		}
		status := c.AuthStatus(context.Background())
		assert.False(t, status.Authenticated)
		assert.False(t, called)
	})
}

func TestListOpenPullRequests(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/app/pulls", r.URL.Path)
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		_, _ = w.Write([]byte(`[
			{
				"number": 42,
				"title": "Add widget",
				"body": "Widget time.",
				"draft": true,
				"html_url": "https://github.com/acme/app/pull/42",
				"node_id": "PR_abc",
				"user": {"login": "octocat"},
				"head": {"ref": "feature-x"},
				"base": {"ref": "main"}
			}
		]`))
	}))

	prs, err := c.ListOpenPullRequests(context.Background(), "acme", "app")
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, PullRequest{
		Number:  42,
		Title:   "Add widget",
		Author:  "octocat",
		HeadRef: "feature-x",
		BaseRef: "main",
		URL:     "https://github.com/acme/app/pull/42",
		IsDraft: true,
		Body:    "Widget time.",
		NodeID:  "PR_abc",
	}, prs[0])
}

func TestMergePullRequest(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/repos/acme/app/pulls/42/merge", r.URL.Path)
			_, _ = w.Write([]byte(`{"merged": true}`))
		}))

		assert.NoError(t, c.MergePullRequest(context.Background(), "acme", "app", 42))
	})

	t.Run("conflict is surfaced", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"Pull Request is not mergeable"}`, http.StatusMethodNotAllowed)
		}))

		err := c.MergePullRequest(context.Background(), "acme", "app", 42)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not mergeable")
	})
}

func TestMarkReadyForReview(t *testing.T) {
	t.Run("sends the mutation", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/graphql", r.URL.Path)
			var body struct {
				Query     string            `json:"query"`
				Variables map[string]string `json:"variables"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body.Query, "markPullRequestReadyForReview")
			assert.Equal(t, "PR_abc", body.Variables["id"])
			_, _ = w.Write([]byte(`{"data": {}}`))
		}))

		assert.NoError(t, c.MarkReadyForReview(context.Background(), "PR_abc"))
	})

	t.Run("graphql errors become errors", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"errors": [{"message": "not a draft"}]}`))
		}))

		err := c.MarkReadyForReview(context.Background(), "PR_abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a draft")
	})
}

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		url   string
		owner string
		repo  string
	}{
		{"https://github.com/acme/app.git", "acme", "app"},
		{"https://github.com/acme/app", "acme", "app"},
		{"git@github.com:acme/app.git", "acme", "app"},
		{"ssh://git@github.com/acme/app.git", "acme", "app"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			owner, repo, err := ParseRemoteURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}

	t.Run("rejects junk", func(t *testing.T) {
		for _, url := range []string{"", "not a url", "https://github.com/acme"} {
			_, _, err := ParseRemoteURL(url)
			assert.Error(t, err, "url %q", url)
		}
	})
}
