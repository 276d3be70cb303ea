package enums

import "fmt"

// Channel identifies the messaging platform a user talks through. A user owns
// exactly one channel identity; the same person on both platforms is two
// independent users.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
)

var validChannels = []Channel{ChannelTelegram, ChannelWhatsApp}

// String implements fmt.Stringer.
func (c Channel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Channel.
func (c Channel) IsValid() bool {
	for _, candidate := range validChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChannel converts raw input into a Channel.
func ParseChannel(value string) (Channel, error) {
	for _, candidate := range validChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid channel %q", value)
}
