package chat

import "strings"

// ChannelFilter restricts which channels the bot answers in.
// A non-empty allow list admits only its channels; the deny list always
// wins. Names compare case-insensitively, with or without a leading '#'.
type ChannelFilter struct {
	allow map[string]bool
	deny  map[string]bool
}

// NewChannelFilter builds a filter from allow and deny lists.
func NewChannelFilter(allow, deny []string) ChannelFilter {
	return ChannelFilter{allow: channelSet(allow), deny: channelSet(deny)}
}

// Allowed reports whether the bot may answer in channel.
func (f ChannelFilter) Allowed(channel string) bool {
	ch := normalizeChannel(channel)
	if f.deny[ch] {
		return false
	}
	if len(f.allow) > 0 {
		return f.allow[ch]
	}
	return true
}

func channelSet(list []string) map[string]bool {
	if len(list) == 0 {
		return nil
	}
	set := make(map[string]bool, len(list))
	for _, ch := range list {
		if n := normalizeChannel(ch); n != "" {
			set[n] = true
		}
	}
	return set
}

func normalizeChannel(ch string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
}
