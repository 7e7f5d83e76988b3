package models

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a channel or summary does not exist for a user
var ErrNotFound = errors.New("not found")

// Placeholder images used when YouTube does not return a thumbnail
const (
	PlaceholderAvatarURL    = "https://placehold.co/40x40.png"
	PlaceholderThumbnailURL = "https://placehold.co/600x400.png"
)

// Channel represents a YouTube channel followed by a user
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatarUrl"`
	AvatarHint string `json:"avatarHint"`
	Enabled    bool   `json:"enabled"`
}

// EnabledIDs returns the ids of the enabled channels, in order
func EnabledIDs(channels []Channel) []string {
	ids := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch.Enabled {
			ids = append(ids, ch.ID)
		}
	}
	return ids
}

// Hint builds the image hint used by the dashboard: the lower-cased text with
// whitespace runs collapsed to single spaces.
func Hint(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
