package reminders

import (
	"fmt"
	"strings"
)

// Texts are the localized fallbacks for an empty notification title or body.
type Texts struct {
	Title string
	Body  string
}

// DefaultTexts returns the built-in strings for lang ("en" or "de").
func DefaultTexts(lang string) Texts {
	if isGerman(lang) {
		return Texts{Title: "Erinnerung", Body: "Zeit für eine Pause!"}
	}
	return Texts{Title: "Reminder", Body: "Time for a break!"}
}

// Resolve substitutes the fallbacks for empty values.
func (t Texts) Resolve(title, body string) (string, string) {
	if strings.TrimSpace(title) == "" {
		title = t.Title
	}
	if strings.TrimSpace(body) == "" {
		body = t.Body
	}
	return title, body
}

// FormatInterval renders an interval in minutes as human-readable text,
// e.g. 90 -> "1 hour 30 minutes".
func FormatInterval(minutes int, lang string) string {
	de := isGerman(lang)
	if minutes < 1 {
		if de {
			return "Ungültiges Intervall"
		}
		return "Invalid interval"
	}

	hours, mins := minutes/60, minutes%60
	switch {
	case hours == 0:
		return formatMinutes(mins, de)
	case mins == 0:
		return formatHours(hours, de)
	default:
		return formatHours(hours, de) + " " + formatMinutes(mins, de)
	}
}

func formatHours(h int, de bool) string {
	if de {
		if h == 1 {
			return "1 Stunde"
		}
		return fmt.Sprintf("%d Stunden", h)
	}
	if h == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", h)
}

func formatMinutes(m int, de bool) string {
	if de {
		if m == 1 {
			return "1 Minute"
		}
		return fmt.Sprintf("%d Minuten", m)
	}
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

func isGerman(lang string) bool {
	return strings.HasPrefix(strings.ToLower(lang), "de")
}
