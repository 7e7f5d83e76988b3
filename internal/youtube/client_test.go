package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/yt-summer/internal/apperr"
	"github.com/yt-summer/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), "test-key", slog.New(slog.DiscardHandler),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func TestChannelVideos(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/search"), r.URL.Path)
		assert.Equal(t, "UCfire", r.URL.Query().Get("channelId"))
		assert.Equal(t, "date", r.URL.Query().Get("order"))
		assert.Equal(t, "5", r.URL.Query().Get("maxResults"))

		writeJSON(w, http.StatusOK, `{"items":[
			{"id":{"videoId":"v1"},"snippet":{"publishedAt":"2024-05-10T11:00:00Z","channelId":"UCfire","channelTitle":"Fireship","title":"Rust &amp; Go in 100 Seconds","description":"fast","thumbnails":{"medium":{"url":"https://i.ytimg.com/v1.jpg"}}}},
			{"id":{"videoId":"v2"},"snippet":{"publishedAt":"2024-05-07T12:00:00Z","channelId":"UCfire","channelTitle":"Fireship","title":"Old one"}},
			{"id":{"channelId":"UCother"},"snippet":{"publishedAt":"2024-05-07T12:00:00Z","title":"not a video"}}
		]}`)
	})
	client.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }

	videos, err := client.ChannelVideos(context.Background(), "UCfire", 5)
	require.NoError(t, err)
	require.Len(t, videos, 2)

	assert.Equal(t, "v1", videos[0].ID)
	assert.Equal(t, "Rust & Go in 100 Seconds", videos[0].Title)
	assert.Equal(t, "Fireship", videos[0].ChannelName)
	assert.Equal(t, "https://i.ytimg.com/v1.jpg", videos[0].ThumbnailURL)
	assert.Equal(t, "1 hours ago", videos[0].PublishedText)
	assert.Equal(t, time.Date(2024, 5, 10, 11, 0, 0, 0, time.UTC), videos[0].PublishedAt.UTC())

	assert.Equal(t, models.PlaceholderThumbnailURL, videos[1].ThumbnailURL)
	assert.Equal(t, "3 days ago", videos[1].PublishedText)
}

func TestChannelVideosErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		want   apperr.Kind
	}{
		{http.StatusForbidden, apperr.AuthFailure},
		{http.StatusNotFound, apperr.NotFound},
		{http.StatusServiceUnavailable, apperr.Overloaded},
		{http.StatusBadRequest, apperr.Fatal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, fmt.Sprintf(`{"error":{"code":%d,"message":"nope"}}`, tt.status))
			})

			_, err := client.ChannelVideos(context.Background(), "UC1", 5)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestVideoDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/videos"), r.URL.Path)
		if r.URL.Query().Get("id") == "missing" {
			writeJSON(w, http.StatusOK, `{"items":[]}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"items":[{"id":"v1",
			"snippet":{"categoryId":"28","tags":["go","rust"],"description":"all about it"},
			"contentDetails":{"duration":"PT4M13S"},
			"statistics":{"viewCount":"1200","likeCount":"30"}}]}`)
	})

	details, err := client.VideoDetails(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "04:13", details.Duration)
	assert.Equal(t, "28", details.CategoryID)
	assert.Equal(t, []string{"go", "rust"}, details.Tags)
	assert.Equal(t, "all about it", details.Description)
	assert.EqualValues(t, 1200, details.ViewCount)
	assert.EqualValues(t, 30, details.LikeCount)

	_, err = client.VideoDetails(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestSubscribedChannelsPaging(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/subscriptions"), r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("mine"))
		calls++

		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, http.StatusOK, `{"nextPageToken":"p2","items":[
				{"snippet":{"title":"Fireship","resourceId":{"channelId":"UCfire"},"thumbnails":{"default":{"url":"https://yt3.test/fire.jpg"}}}}
			]}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"items":[
			{"snippet":{"title":"Veritasium","resourceId":{"channelId":"UCveri"}}},
			{"snippet":{"title":"broken"}}
		]}`)
	})

	channels, err := client.SubscribedChannels(context.Background(), "access-token")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, channels, 2)

	assert.Equal(t, models.Channel{
		ID:         "UCfire",
		Name:       "Fireship",
		AvatarURL:  "https://yt3.test/fire.jpg",
		AvatarHint: "fireship",
		Enabled:    true,
	}, channels[0])
	assert.Equal(t, models.PlaceholderAvatarURL, channels[1].AvatarURL)
	assert.True(t, channels[1].Enabled)
}

func TestSubscribedChannelsWithoutToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.SubscribedChannels(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.AuthFailure))
}
