package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/yt-summer/internal/directory"
	"github.com/yt-summer/internal/lock"
	"github.com/yt-summer/internal/models"
	"github.com/yt-summer/internal/storage"
	"github.com/yt-summer/internal/summarize"
	"github.com/yt-summer/internal/syncer"
)

type fakeSyncer struct {
	err       error
	userID    string
	token     string
	deadline  bool
	previewed string
}

func (f *fakeSyncer) Sync(ctx context.Context, userID, accessToken string) (*syncer.Report, error) {
	f.userID, f.token = userID, accessToken
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &syncer.Report{Channels: 2, EnabledChannels: 1, Selected: []string{"v1"}, Created: []string{"v1"}, Skipped: []string{}}, nil
}

func (f *fakeSyncer) Preview(_ context.Context, videoID, title, channelName string) (summarize.Result, models.ContentSource) {
	f.previewed = videoID + "|" + title + "|" + channelName
	return summarize.Result{Text: "• one\n• two", Points: []string{"• one", "• two"}}, models.SourceMetadata
}

type testServer struct {
	server *Server
	repo   *storage.DocumentRepository
	syncer *fakeSyncer
}

func newTestServer(t *testing.T, oauth *oauth2.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.DiscardHandler)
	locker := lock.NewMemory()
	repo := storage.NewMemoryRepository(locker)
	fs := &fakeSyncer{}

	server := NewServer(Deps{
		Directory:      directory.New(repo, locker, logger),
		Summaries:      repo,
		Syncer:         fs,
		OAuth:          oauth,
		AllowedOrigins: []string{"http://localhost:3000"},
		SyncTimeout:    time.Minute,
		Logger:         logger,
	})
	return &testServer{server: server, repo: repo, syncer: fs}
}

func (ts *testServer) do(method, path, user string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAPIRequiresIdentity(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/api/channels", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChannelEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/api/channels", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = ts.do(http.MethodPut, "/api/channels", "alice", map[string]any{
		"channels": []map[string]any{
			{"id": "UC1", "name": "Fire  Ship", "enabled": true},
			{"id": "UC2", "name": "Other", "avatarUrl": "https://a/2.png", "avatarHint": "other", "enabled": true},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode[[]models.Channel](t, w)
	assert.Equal(t, models.PlaceholderAvatarURL, saved[0].AvatarURL)
	assert.Equal(t, "fire ship", saved[0].AvatarHint)

	w = ts.do(http.MethodPatch, "/api/channels/UC2", "alice", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[models.Channel](t, w).Enabled)

	w = ts.do(http.MethodPatch, "/api/channels/UC9", "alice", map[string]any{"enabled": false})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())

	w = ts.do(http.MethodPatch, "/api/channels/UC1", "alice", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/channels", "alice", nil)
	channels := decode[[]models.Channel](t, w)
	assert.Equal(t, []string{"UC1"}, models.EnabledIDs(channels))

	w = ts.do(http.MethodGet, "/api/channels", "bob", nil)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = ts.do(http.MethodPut, "/api/channels", "alice", map[string]any{"channels": []map[string]any{{"name": "no id"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPut, "/api/channels", "alice", map[string]any{
		"channels": []map[string]any{{"id": "UC1", "name": "A"}, {"id": "UC1", "name": "B"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"duplicate channel id UC1"}`, w.Body.String())

	w = ts.do(http.MethodGet, "/api/channels", "alice", nil)
	assert.Len(t, decode[[]models.Channel](t, w), 2)
}

func TestSyncEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/api/sync", "alice", map[string]string{"accessToken": "ya29.token"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[syncer.Report](t, w)
	assert.Equal(t, []string{"v1"}, report.Created)
	assert.Equal(t, "alice", ts.syncer.userID)
	assert.Equal(t, "ya29.token", ts.syncer.token)
	assert.True(t, ts.syncer.deadline)

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-YouTube-Token", "from-header")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "from-header", ts.syncer.token)
}

func TestSyncEndpointErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{syncer.ErrSyncInProgress, http.StatusConflict},
		{fmt.Errorf("failed to update channels: %w", errors.New("disk full")), http.StatusInternalServerError},
		{fmt.Errorf("sync interrupted: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.syncer.err = tt.err

			w := ts.do(http.MethodPost, "/api/sync", "alice", map[string]string{})
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestSummaryEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		s := models.Summary{
			ID:            fmt.Sprintf("s%02d", i),
			VideoID:       fmt.Sprintf("v%02d", i),
			SummaryPoints: []string{"• point"},
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		_, _, err := ts.repo.InsertSummaryIfAbsent(ctx, "alice", s)
		require.NoError(t, err)
	}

	w := ts.do(http.MethodGet, "/api/summaries", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]models.Summary](t, w)
	require.Len(t, list, 20)
	assert.Equal(t, "s24", list[0].ID)

	w = ts.do(http.MethodGet, "/api/summaries?limit=3", "alice", nil)
	assert.Len(t, decode[[]models.Summary](t, w), 3)

	w = ts.do(http.MethodGet, "/api/summaries?limit=abc", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodDelete, "/api/summaries/s24", "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodDelete, "/api/summaries/s24", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodDelete, "/api/summaries/s23", "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/api/summaries?limit=100", "alice", nil)
	assert.Len(t, decode[[]models.Summary](t, w), 24)
}

func TestSummarizeEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/api/summarize", "alice", map[string]string{
		"videoId":    "v1",
		"videoTitle": "Intro to Rust Tutorial",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"success": true,
		"summary": "• one\n• two",
		"summaryPoints": ["• one", "• two"],
		"contentSource": "metadata"
	}`, w.Body.String())
	assert.Equal(t, "v1|Intro to Rust Tutorial|", ts.syncer.previewed)

	for _, body := range []map[string]string{
		{"videoTitle": "no id"},
		{"videoId": "v1"},
		{},
	} {
		w = ts.do(http.MethodPost, "/api/summarize", "alice", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Missing videoId or videoTitle"}`, w.Body.String())
	}

	summaries, err := ts.repo.ListSummaries(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/channels", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoginFlow(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at","token_type":"Bearer","expires_in":3600,"id_token":"idt"}`)
	}))
	defer tokenSrv.Close()

	ts := newTestServer(t, &oauth2.Config{
		ClientID:    "cid",
		RedirectURL: "http://localhost:8080/auth/callback",
		Scopes:      []string{"openid"},
		Endpoint:    oauth2.Endpoint{AuthURL: tokenSrv.URL + "/auth", TokenURL: tokenSrv.URL + "/token"},
	})

	w := ts.do(http.MethodGet, "/auth/login", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"idToken":"idt"`)
	assert.Contains(t, rec.Body.String(), `"accessToken":"at"`)

	req = httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=forged", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Invalid OAuth state"))
}

func TestLoginDisabled(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/auth/login", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
