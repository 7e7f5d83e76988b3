// Package summarize turns video content into bullet point summaries. A
// remote model does the work; when it cannot, an extractive summary is
// produced instead so callers always get a result.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/yt-summer/internal/apperr"
	"github.com/yt-summer/internal/models"
)

const (
	systemPrompt = "You are an expert YouTube video summarizer. You can create bullet point summaries from either video transcripts or video metadata (title, description, tags, etc.)."

	fallbackLines  = 5
	fallbackNotice = "• Summary generated from transcript (AI service temporarily unavailable)"
	maxAttempts    = 2
)

// Result is the outcome of a summarization
type Result struct {
	Text     string
	Points   []string
	Degraded bool
}

// Options tune the service
type Options struct {
	// RetryDelay is the wait before the single retry of an overloaded call
	RetryDelay time.Duration
	// RatePerMinute caps generation calls; zero disables throttling
	RatePerMinute int
}

// Service summarizes content with a Generator
type Service struct {
	generator  Generator
	limiter    *rate.Limiter
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewService creates a new summarization Service
func NewService(generator Generator, opts Options, logger *slog.Logger) *Service {
	limit := rate.Inf
	if opts.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RatePerMinute))
	}
	return &Service{
		generator:  generator,
		limiter:    rate.NewLimiter(limit, 1),
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}
}

// Summarize never fails. An overloaded model is retried once after the
// retry delay; any other failure, or a second overload, yields the
// extractive fallback with Degraded set.
func (s *Service) Summarize(ctx context.Context, content models.Content, title string) Result {
	prompt := BuildPrompt(content, title)

	text, err := s.generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("summarization failed, using fallback",
			slog.String("title", title),
			slog.String("kind", apperr.KindOf(err).String()),
			slog.String("error", err.Error()))
		text = Fallback(content.Text)
		return Result{Text: text, Points: SplitPoints(text), Degraded: true}
	}

	return Result{Text: text, Points: SplitPoints(text)}
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	attempt := 0
	operation := func() (string, error) {
		attempt++
		if err := s.limiter.Wait(ctx); err != nil {
			return "", backoff.Permanent(err)
		}

		text, err := s.generator.Generate(ctx, systemPrompt, prompt)
		if err == nil && strings.TrimSpace(text) == "" {
			err = apperr.New(apperr.Fatal, "generate", errors.New("empty completion"))
		}
		if err != nil {
			if apperr.Is(err, apperr.Overloaded) {
				s.logger.Info("model overloaded", slog.Int("attempt", attempt), slog.Duration("retry_in", s.retryDelay))
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		return text, nil
	}

	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retryDelay)),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		return "", fmt.Errorf("generate summary after %d attempt(s): %w", attempt, err)
	}
	return text, nil
}

// BuildPrompt renders the user prompt for content
func BuildPrompt(content models.Content, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", title)
	fmt.Fprintf(&b, "Content (%s): %s\n\n", content.Source, content.Text)
	b.WriteString("Instructions:\n")
	b.WriteString("- Create 3-5 bullet points summarizing the key information\n")
	if content.Source == models.SourceMetadata {
		b.WriteString("- You are working from metadata only, start with \"• Based on video metadata:\" and make it clear the summary is based on limited data\n")
		b.WriteString("- Keep it concise\n")
	} else {
		b.WriteString("- Create a detailed summary of the video content\n")
	}
	b.WriteString("- Focus on the most important aspects of the video\n")
	b.WriteString("- Keep each bullet point concise but informative\n\n")
	b.WriteString("Summary:")
	return b.String()
}

// Fallback builds an extractive summary from the first non-blank lines of text
func Fallback(text string) string {
	var points []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		points = append(points, "• "+line)
		if len(points) == fallbackLines {
			break
		}
	}
	return strings.Join(points, "\n") + "\n\n" + fallbackNotice
}

// SplitPoints splits a summary into its non-blank trimmed lines
func SplitPoints(text string) []string {
	var points []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			points = append(points, line)
		}
	}
	return points
}
