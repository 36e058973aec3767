package domain

// VoiceState is the before/after channel occupancy of one user, as
// reported by the voice gateway. Mute, deaf and other self-state
// toggles arrive with identical channel IDs on both sides.
type VoiceState struct {
	ChannelID string
}

// ChannelDelta classifies a voice state transition. The second return
// is false for non-channel-changing updates, which producers emit on
// every mute or self-state toggle and which must never reach the
// aggregator.
func ChannelDelta(before, after VoiceState) (EventKind, bool) {
	switch {
	case before.ChannelID == after.ChannelID:
		return "", false
	case before.ChannelID == "" && after.ChannelID != "":
		return Joined, true
	case before.ChannelID != "" && after.ChannelID == "":
		return Left, true
	default:
		return Switched, true
	}
}
