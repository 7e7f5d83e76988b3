package youtube

import (
	"fmt"
	"regexp"
	"time"

	"github.com/yt-summer/internal/models"
)

// FormatPublished renders a publish time relative to now:
// under a day "N hours ago", under two days "1 day ago", else "N days ago".
// Times ahead of now count as "0 hours ago".
func FormatPublished(published, now time.Time) string {
	hours := max(int(now.Sub(published).Hours()), 0)
	switch {
	case hours < 24:
		return fmt.Sprintf("%d hours ago", hours)
	case hours < 48:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", hours/24)
	}
}

var durationRE = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// FormatDuration converts an ISO 8601 duration such as PT1H2M3S to 1:02:03
func FormatDuration(iso string) string {
	m := durationRE.FindStringSubmatch(iso)
	if m == nil || iso == "PT" {
		return "Unknown"
	}

	hours, minutes, seconds := m[1], m[2], m[3]
	result := ""
	if hours != "" {
		result = hours + ":"
	}
	return result + pad2(minutes) + ":" + pad2(seconds)
}

func pad2(s string) string {
	switch len(s) {
	case 0:
		return "00"
	case 1:
		return "0" + s
	default:
		return s
	}
}

// FallbackChannels is the channel set used when the user's subscriptions
// cannot be fetched.
func FallbackChannels() []models.Channel {
	return []models.Channel{
		{ID: "1", Name: "Marques Brownlee", AvatarURL: models.PlaceholderAvatarURL, AvatarHint: "man tech", Enabled: true},
		{ID: "2", Name: "MrBeast", AvatarURL: models.PlaceholderAvatarURL, AvatarHint: "man fun", Enabled: true},
		{ID: "3", Name: "Lex Fridman", AvatarURL: models.PlaceholderAvatarURL, AvatarHint: "man podcast", Enabled: true},
		{ID: "4", Name: "Fireship", AvatarURL: models.PlaceholderAvatarURL, AvatarHint: "code fire", Enabled: true},
		{ID: "5", Name: "Veritasium", AvatarURL: models.PlaceholderAvatarURL, AvatarHint: "science man", Enabled: true},
	}
}
