package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yt-summer/internal/apperr"
)

// ErrNoTranscript signals that a video has no usable captions
var ErrNoTranscript = errors.New("no transcript available")

const (
	defaultWatchURL      = "https://www.youtube.com/watch"
	playerResponseMarker = "ytInitialPlayerResponse = "
	userAgent            = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxWatchPageBytes    = 6 << 20
	maxTimedTextBytes    = 2 << 20
)

// Transcript is the ordered caption text of a video
type Transcript struct {
	Fragments []string
	Language  string
}

// TranscriptFetcher reads captions by scraping the watch page for the
// player response and downloading the best caption track.
type TranscriptFetcher struct {
	client   *http.Client
	watchURL string
	langs    []string
	logger   *slog.Logger
}

// TranscriptOption customises a TranscriptFetcher
type TranscriptOption func(*TranscriptFetcher)

// WithWatchURL overrides the watch page URL (without query)
func WithWatchURL(u string) TranscriptOption {
	return func(f *TranscriptFetcher) { f.watchURL = u }
}

// WithLanguages sets the preferred caption languages, most preferred first
func WithLanguages(langs ...string) TranscriptOption {
	return func(f *TranscriptFetcher) { f.langs = langs }
}

// NewTranscriptFetcher creates a TranscriptFetcher using client
func NewTranscriptFetcher(client *http.Client, logger *slog.Logger, opts ...TranscriptOption) *TranscriptFetcher {
	f := &TranscriptFetcher{
		client:   client,
		watchURL: defaultWatchURL,
		langs:    []string{"en"},
		logger:   logger,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type playerResponse struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

// Transcript returns the caption fragments of a video or ErrNoTranscript
func (f *TranscriptFetcher) Transcript(ctx context.Context, videoID string) (*Transcript, error) {
	player, err := f.playerResponse(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if player.Captions == nil || len(player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks) == 0 {
		if player.PlayabilityStatus != nil && player.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoTranscript, player.PlayabilityStatus.Reason)
		}
		return nil, ErrNoTranscript
	}

	track, ok := pickTrack(player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, f.langs)
	if !ok {
		return nil, fmt.Errorf("%w: all caption tracks require a browser session", ErrNoTranscript)
	}

	fragments, err := f.timedText(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	if len(fragments) == 0 {
		return nil, ErrNoTranscript
	}

	f.logger.Debug("fetched transcript",
		slog.String("video", videoID),
		slog.String("language", track.LanguageCode),
		slog.Int("fragments", len(fragments)))
	return &Transcript{Fragments: fragments, Language: track.LanguageCode}, nil
}

func (f *TranscriptFetcher) playerResponse(ctx context.Context, videoID string) (*playerResponse, error) {
	resp, err := f.get(ctx, f.watchURL+"?v="+url.QueryEscape(videoID))
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxWatchPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse watch page: %w", err)
	}

	var raw []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, playerResponseMarker)
		if idx < 0 {
			return true
		}
		raw = extractJSONObject(text[idx+len(playerResponseMarker):])
		return raw == nil
	})
	if raw == nil {
		return nil, fmt.Errorf("%w: player response not found in watch page", ErrNoTranscript)
	}

	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, apperr.New(apperr.Fatal, "transcript", fmt.Errorf("decode player response: %w", err))
	}
	return &player, nil
}

type timedTextDoc struct {
	Texts []string `xml:"text"`
	Body  struct {
		Paragraphs []struct {
			Text     string   `xml:",chardata"`
			Segments []string `xml:"s"`
		} `xml:"p"`
	} `xml:"body"`
}

func (f *TranscriptFetcher) timedText(ctx context.Context, baseURL string) ([]string, error) {
	resp, err := f.get(ctx, baseURL)
	if err != nil {
		return nil, fmt.Errorf("timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTimedTextBytes))
	if err != nil {
		return nil, fmt.Errorf("read timedtext: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var doc timedTextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, apperr.New(apperr.Fatal, "transcript", fmt.Errorf("parse timedtext XML: %w", err))
	}

	var fragments []string
	add := func(s string) {
		if s = strings.TrimSpace(html.UnescapeString(s)); s != "" {
			fragments = append(fragments, s)
		}
	}
	for _, text := range doc.Texts {
		add(text)
	}
	for _, p := range doc.Body.Paragraphs {
		add(p.Text + strings.Join(p.Segments, ""))
	}
	return fragments, nil
}

func (f *TranscriptFetcher) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.Transient, "transcript", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperr.New(apperr.FromHTTPStatus(resp.StatusCode), "transcript", fmt.Errorf("status %d from %s", resp.StatusCode, req.URL.Host))
	}
	return resp, nil
}

// pickTrack selects a manual track in a preferred language, then an
// auto-generated one, then any English track, then the first usable one.
// Tracks flagged exp=xpe need a browser proof-of-origin token and are skipped.
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !strings.Contains(t.BaseURL, "&exp=xpe") {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}

	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// extractJSONObject returns the balanced JSON object at the start of s
func extractJSONObject(s string) []byte {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1])
			}
		}
	}
	return nil
}
