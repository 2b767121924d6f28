package jira

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/douhashi/kobito/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Options{
		URL:            server.URL,
		Username:       "dev@example.com",
		Token:          "jira-token",
		JQL:            "assignee = currentUser()",
		ProcessedLabel: "kobito-processed",
	}, logger.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "異常系: URLなし", opts: Options{Username: "u", Token: "t", JQL: "q"}, wantErr: "JIRA URL is required"},
		{name: "異常系: ユーザー名なし", opts: Options{URL: "https://example.atlassian.net", Token: "t", JQL: "q"}, wantErr: "JIRA username is required"},
		{name: "異常系: トークンなし", opts: Options{URL: "https://example.atlassian.net", Username: "u", JQL: "q"}, wantErr: "JIRA token is required"},
		{name: "異常系: JQLなし", opts: Options{URL: "https://example.atlassian.net", Username: "u", Token: "t"}, wantErr: "JQL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.opts, nil)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestClient_SearchJQL(t *testing.T) {
	c := &Client{jql: "assignee = currentUser()", processedLabel: "kobito-processed"}
	assert.Equal(t, `(assignee = currentUser()) AND (labels IS EMPTY OR labels != "kobito-processed")`, c.SearchJQL())

	c.processedLabel = ""
	assert.Equal(t, "assignee = currentUser()", c.SearchJQL())
}

func TestClient_FetchAssignedIssues(t *testing.T) {
	t.Run("正常系: チケットをIssueに変換し処理済みを除外する", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "dev@example.com", user)
			assert.Equal(t, "jira-token", pass)
			assert.Contains(t, r.URL.Query().Get("jql"), "kobito-processed")

			_, _ = io.WriteString(w, `{"startAt": 0, "maxResults": 100, "total": 2, "issues": [
				{"id": "10001", "key": "PROJ-12", "fields": {"summary": "Fix login", "description": "steps", "labels": [], "assignee": {"displayName": "Alice"}}},
				{"id": "10002", "key": "PROJ-13", "fields": {"summary": "Done", "labels": ["kobito-processed"]}}
			]}`)
		})

		c := newTestClient(t, mux)
		issues, err := c.FetchAssignedIssues(context.Background())

		require.NoError(t, err)
		require.Len(t, issues, 1)
		assert.Equal(t, "PROJ-12", issues[0].ID)
		assert.Equal(t, "PROJ-12", issues[0].Key)
		assert.Equal(t, 12, issues[0].Number)
		assert.Equal(t, "Fix login", issues[0].Title)
		assert.Equal(t, "steps", issues[0].Body)
		assert.Equal(t, "Alice", issues[0].Assignee)
		assert.Equal(t, c.baseURL+"/browse/PROJ-12", issues[0].URL)
	})

	t.Run("異常系: サーバーエラーはリトライ可能なエラーになる", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		c := newTestClient(t, mux)
		_, err := c.FetchAssignedIssues(context.Background())

		var jiraErr *Error
		require.True(t, errors.As(err, &jiraErr))
		assert.Equal(t, http.StatusServiceUnavailable, jiraErr.StatusCode)
		assert.True(t, jiraErr.IsRetryable())
		assert.Equal(t, 7*time.Second, jiraErr.RetryDelay())
	})

	t.Run("異常系: 認証エラーはリトライ不可", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		c := newTestClient(t, mux)
		_, err := c.FetchAssignedIssues(context.Background())

		var jiraErr *Error
		require.True(t, errors.As(err, &jiraErr))
		assert.False(t, jiraErr.IsRetryable())
	})
}

func TestClient_MarkIssueAsProcessed(t *testing.T) {
	var body map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/PROJ-12", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, mux)
	err := c.MarkIssueAsProcessed(context.Background(), "PROJ-12")

	require.NoError(t, err)
	labels := body["update"].(map[string]interface{})["labels"].([]interface{})
	assert.Equal(t, map[string]interface{}{"add": "kobito-processed"}, labels[0])
}

func TestClient_GetIssue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue/PROJ-7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": "10007", "key": "PROJ-7", "fields": {"summary": "Add cache"}}`)
	})

	c := newTestClient(t, mux)
	issue, err := c.GetIssue(context.Background(), "PROJ-7")

	require.NoError(t, err)
	assert.Equal(t, "PROJ-7", issue.ID)
	assert.Equal(t, 7, issue.Number)
	assert.Equal(t, "Add cache", issue.Title)
}

func TestKeyNumber(t *testing.T) {
	assert.Equal(t, 12, keyNumber("PROJ-12"))
	assert.Equal(t, 3, keyNumber("MY-TEAM-3"))
	assert.Equal(t, 0, keyNumber("PROJ"))
	assert.Equal(t, 0, keyNumber("PROJ-x"))
}
