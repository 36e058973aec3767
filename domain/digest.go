package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Activity pairs a subject with the game they started.
type Activity struct {
	User User
	Game string
}

// Digest is the render-ready product of one flushed window.
type Digest struct {
	SourceKey string
	Joined    []User
	Left      []User
	Switched  []User
	Playing   []Activity
	Stopped   []User
	Members   []User
	WindowEnd time.Time
}

func (d Digest) Empty() bool {
	return len(d.Joined)+len(d.Left)+len(d.Switched)+len(d.Playing)+len(d.Stopped) == 0
}

// Kind returns the store row kind used to tag messages rendered from
// this digest. Presence digests never mix with voice digests because
// their source keys are disjoint.
func (d Digest) Kind() Kind {
	if len(d.Playing) > 0 || len(d.Stopped) > 0 {
		return KindSteamEvent
	}
	return KindDiscordEvent
}

// Render produces the notification text for the destination chat.
// One line per group, omitting empty groups; the occupants snapshot
// comes last. Escaping for the wire format happens in the delivery
// client, not here.
func (d Digest) Render() string {
	var lines []string
	if names := displayNames(d.Joined); names != "" {
		lines = append(lines, fmt.Sprintf("🔊 %s joined %s", names, d.SourceKey))
	}
	if names := displayNames(d.Left); names != "" {
		lines = append(lines, fmt.Sprintf("🔇 %s left %s", names, d.SourceKey))
	}
	if names := displayNames(d.Switched); names != "" {
		lines = append(lines, fmt.Sprintf("🔄 %s moved to %s", names, d.SourceKey))
	}
	for _, a := range d.Playing {
		if a.Game == "" {
			lines = append(lines, fmt.Sprintf("🎮 %s is now in-game", a.User.Name))
			continue
		}
		lines = append(lines, fmt.Sprintf("🎮 %s is playing %s", a.User.Name, a.Game))
	}
	if names := displayNames(d.Stopped); names != "" {
		lines = append(lines, fmt.Sprintf("🎮 %s stopped playing", names))
	}
	if len(d.Members) > 0 {
		lines = append(lines, fmt.Sprintf("👥 In channel: %s", displayNames(d.Members)))
	}
	return strings.Join(lines, "\n")
}

func displayNames(users []User) string {
	names := lo.Map(users, func(u User, _ int) string {
		if u.Name != "" {
			return u.Name
		}
		return u.ID
	})
	return strings.Join(names, ", ")
}
