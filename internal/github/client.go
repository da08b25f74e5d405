// Package github is a thin client over the GitHub REST and GraphQL APIs,
// covering only what the panel needs: the auth status, open pull requests,
// merging, and marking drafts ready for review.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/zjrosen/switchyard/internal/config"
	"github.com/zjrosen/switchyard/internal/log"
)

const requestTimeout = 15 * time.Second

// PullRequest is the subset of pull-request fields the panel renders.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	HeadRef string `json:"headRef"`
	BaseRef string `json:"baseRef"`
	URL     string `json:"url"`
	IsDraft bool   `json:"isDraft"`
	Body    string `json:"body,omitempty"`
	// NodeID is the GraphQL identifier, needed for the ready-for-review
	// mutation which has no REST equivalent.
	NodeID string `json:"nodeId"`
}

// AuthStatus reports whether API calls are authenticated and as whom.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Login         string `json:"login,omitempty"`
}

// Client calls the GitHub APIs with a single resolved token.
type Client struct {
	apiURL string
	token  string
	http   *http.Client
}

// NewClient resolves the token from the config, then the GITHUB_TOKEN
// environment variable, then `gh auth token`. A client with no token still
// works; calls just come back unauthenticated.
func NewClient(cfg config.GitHubConfig) *Client {
	token := cfg.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		token = ghCLIToken()
	}

	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	return &Client{
		apiURL: apiURL,
		token:  token,
		http:   &http.Client{Timeout: requestTimeout},
	}
}

// ghCLIToken shells out to the gh CLI for a token, matching how users who
// never configured one are usually already authenticated.
func ghCLIToken() string {
	out, err := exec.Command("gh", "auth", "token").Output()
	if err != nil {
		log.Debug(log.CatGitHub, "No token from gh CLI", "error", err)
		return ""
	}
	return strings.TrimSpace(string(out))
}

// AuthStatus queries the authenticated user. Any failure yields an
// unauthenticated status rather than an error; the panel renders it either way.
func (c *Client) AuthStatus(ctx context.Context) AuthStatus {
	if c.token == "" {
		return AuthStatus{}
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL+"/user", nil, &user); err != nil {
		log.Warn(log.CatGitHub, "Auth status check failed", "error", err)
		return AuthStatus{}
	}
	return AuthStatus{Authenticated: true, Login: user.Login}
}

// ListOpenPullRequests returns the open pull requests for owner/repo,
// newest first, as the REST API orders them.
func (c *Client) ListOpenPullRequests(ctx context.Context, owner, repo string) ([]PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls?state=open&per_page=50", c.apiURL, owner, repo)

	var raw []struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		Body    string `json:"body"`
		Draft   bool   `json:"draft"`
		HTMLURL string `json:"html_url"`
		NodeID  string `json:"node_id"`
		User    struct {
			Login string `json:"login"`
		} `json:"user"`
		Head struct {
			Ref string `json:"ref"`
		} `json:"head"`
		Base struct {
			Ref string `json:"ref"`
		} `json:"base"`
	}
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &raw); err != nil {
		return nil, fmt.Errorf("listing pull requests for %s/%s: %w", owner, repo, err)
	}

	out := make([]PullRequest, 0, len(raw))
	for _, pr := range raw {
		out = append(out, PullRequest{
			Number:  pr.Number,
			Title:   pr.Title,
			Author:  pr.User.Login,
			HeadRef: pr.Head.Ref,
			BaseRef: pr.Base.Ref,
			URL:     pr.HTMLURL,
			IsDraft: pr.Draft,
			Body:    pr.Body,
			NodeID:  pr.NodeID,
		})
	}
	log.Debug(log.CatGitHub, "Listed pull requests", "repo", owner+"/"+repo, "count", len(out))
	return out, nil
}

// MergePullRequest merges the pull request using the repository's default
// merge method.
func (c *Client) MergePullRequest(ctx context.Context, owner, repo string, number int) error {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/merge", c.apiURL, owner, repo, number)
	if err := c.doJSON(ctx, http.MethodPut, url, map[string]any{}, nil); err != nil {
		return fmt.Errorf("merging pull request #%d: %w", number, err)
	}
	log.Info(log.CatGitHub, "Merged pull request", "repo", owner+"/"+repo, "number", number)
	return nil
}

// MarkReadyForReview flips a draft pull request to ready via GraphQL.
func (c *Client) MarkReadyForReview(ctx context.Context, nodeID string) error {
	body := map[string]any{
		"query": `mutation($id: ID!) { markPullRequestReadyForReview(input: {pullRequestId: $id}) { pullRequest { isDraft } } }`,
		"variables": map[string]string{
			"id": nodeID,
		},
	}

	var resp struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.graphqlURL(), body, &resp); err != nil {
		return fmt.Errorf("marking pull request ready: %w", err)
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("marking pull request ready: %s", resp.Errors[0].Message)
	}
	log.Info(log.CatGitHub, "Marked pull request ready for review", "id", nodeID)
	return nil
}

// graphqlURL derives the GraphQL endpoint from the REST base. GitHub
// Enterprise hosts it under /api/graphql rather than a subdomain.
func (c *Client) graphqlURL() string {
	if c.apiURL == "https://api.github.com" {
		return "https://api.github.com/graphql"
	}
	return strings.TrimSuffix(c.apiURL, "/v3") + "/graphql"
}

func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, url, resp.Status, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
