// Package projection builds read models over the history log.
// It never emits events or talks to the network.
package projection

import (
	"chat-relay/domain"
	"fmt"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"
)

const (
	// DefaultMaxChars caps the transcript handed to a summarizer; the
	// destination platform truncates anything near its 4096 limit.
	DefaultMaxChars = 4000

	minMessageLength = 5
	minAlphaRatio    = 0.6
)

// Stats describes what the digest kept and what it threw away.
type Stats struct {
	TotalMessages   int
	BotsIgnored     int
	MediaIgnored    int
	LinksIgnored    int
	CommandsIgnored int
	ShortIgnored    int
	NoiseIgnored    int

	UserMessages   map[string]int
	UserCharacters map[string]int
	MostTalkative  string

	OldestUser string
	OldestAt   string

	DominantLanguage string
}

func (s Stats) TotalIgnored() int {
	return s.BotsIgnored + s.MediaIgnored + s.LinksIgnored +
		s.CommandsIgnored + s.ShortIgnored + s.NoiseIgnored
}

// Digest is the prepared conversation transcript plus its statistics.
type Digest struct {
	Conversation string
	Stats        Stats
}

// Prepare filters history rows down to summarizable human text and
// builds the transcript in chronological order. Input is expected
// newest first, as the repository returns it.
func Prepare(messages []domain.Message, maxChars int) Digest {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	stats := Stats{
		TotalMessages:  len(messages),
		UserMessages:   make(map[string]int),
		UserCharacters: make(map[string]int),
	}

	var lines []string
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]

		if msg.FromBot {
			stats.BotsIgnored++
			continue
		}
		if msg.Kind != domain.KindText || msg.Text == "" {
			stats.MediaIgnored++
			continue
		}
		text := strings.TrimSpace(msg.Text)
		if len(text) < minMessageLength {
			stats.ShortIgnored++
			continue
		}
		if strings.HasPrefix(text, "/") {
			stats.CommandsIgnored++
			continue
		}
		if strings.Contains(strings.ToLower(text), "http") {
			stats.LinksIgnored++
			continue
		}
		// Mentions-only and emoji walls carry no summarizable content.
		if strings.HasPrefix(text, "@") || len(strings.ReplaceAll(text, " ", "")) < 3 {
			stats.NoiseIgnored++
			continue
		}
		if alphaRatio(text) < minAlphaRatio {
			stats.NoiseIgnored++
			continue
		}

		lines = append(lines, fmt.Sprintf("%s: %s", msg.User, text))
		stats.UserMessages[msg.User]++
		stats.UserCharacters[msg.User] += len(text)

		if stats.OldestUser == "" {
			stats.OldestUser = msg.User
			stats.OldestAt = msg.At.Format("02/01 15:04")
		}
	}

	conversation := strings.Join(lines, "\n")
	if len(conversation) > maxChars {
		conversation = conversation[:maxChars] + "..."
	}

	if conversation != "" {
		info := whatlanggo.Detect(conversation)
		stats.DominantLanguage = info.Lang.Iso6391()
	}
	stats.MostTalkative = mostTalkative(stats.UserCharacters)

	return Digest{Conversation: conversation, Stats: stats}
}

// mostTalkative picks the author with the highest character count.
func mostTalkative(characters map[string]int) string {
	users := lo.Keys(characters)
	if len(users) == 0 {
		return ""
	}
	return lo.MaxBy(users, func(a, b string) bool {
		if characters[a] != characters[b] {
			return characters[a] > characters[b]
		}
		return a < b // deterministic tie break
	})
}

func alphaRatio(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	count := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			count++
		}
	}
	return float64(count) / float64(len([]rune(text)))
}
