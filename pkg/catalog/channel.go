package catalog

import (
	"fmt"
	"strings"
)

// Channel is a named release track.
type Channel string

const (
	Release Channel = "release"
	Beta    Channel = "beta"
	ESR     Channel = "esr"
	Aurora  Channel = "aurora"
	Nightly Channel = "nightly"
)

// TokenKind selects which namespace a channel token is requested for. The
// same channel is spelled differently on disk, in the upstream directory tree
// and in the upstream "latest build" resolver.
type TokenKind int

const (
	// TokenLocal is the install path segment, e.g. "beta"
	TokenLocal TokenKind = iota
	// TokenListing is the upstream directory segment, e.g. "latest-beta"
	TokenListing
	// TokenProduct is the upstream resolver identifier, e.g. "firefox-beta-latest"
	TokenProduct
)

func (k TokenKind) String() string {
	switch k {
	case TokenLocal:
		return "local"
	case TokenListing:
		return "listing"
	case TokenProduct:
		return "product"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// ChannelDescriptor maps a channel to its upstream and local tokens.
type ChannelDescriptor struct {
	Channel Channel `json:"channel" yaml:"channel"`
	Listing string  `json:"listing" yaml:"listing"`
	Product string  `json:"product" yaml:"product"`
	Local   string  `json:"local" yaml:"local"`
	// Flat channels publish every platform and locale in a single index
	// directory, so the listing has to be filtered by platform and locale.
	Flat bool `json:"flat" yaml:"flat"`
}

// Token returns the channel token for the requested namespace.
func (d ChannelDescriptor) Token(kind TokenKind) (string, error) {
	switch kind {
	case TokenLocal:
		return d.Local, nil
	case TokenListing:
		return d.Listing, nil
	case TokenProduct:
		return d.Product, nil
	default:
		return "", fmt.Errorf("unknown token kind %s for channel %s", kind, d.Channel)
	}
}

var channels = map[Channel]ChannelDescriptor{
	Release: {Channel: Release, Listing: "latest", Product: "firefox-latest", Local: "release"},
	Beta:    {Channel: Beta, Listing: "latest-beta", Product: "firefox-beta-latest", Local: "beta"},
	ESR:     {Channel: ESR, Listing: "latest-esr", Product: "firefox-esr-latest", Local: "esr"},
	Aurora:  {Channel: Aurora, Listing: "latest-mozilla-aurora", Product: "firefox-devedition-latest", Local: "aurora", Flat: true},
	Nightly: {Channel: Nightly, Listing: "latest-mozilla-central", Product: "firefox-nightly-latest", Local: "nightly", Flat: true},
}

var channelOrder = []Channel{Release, Beta, ESR, Aurora, Nightly}

// Channels returns every supported channel in display order.
func Channels() []Channel {
	return append([]Channel(nil), channelOrder...)
}

// LookupChannel returns the descriptor for a channel.
func LookupChannel(ch Channel) (ChannelDescriptor, error) {
	desc, ok := channels[ch]
	if !ok {
		return ChannelDescriptor{}, newErrUnknownChannel(string(ch))
	}
	return desc, nil
}

// ChannelToken is a shorthand for LookupChannel followed by Token.
func ChannelToken(ch Channel, kind TokenKind) (string, error) {
	desc, err := LookupChannel(ch)
	if err != nil {
		return "", err
	}
	return desc.Token(kind)
}

// ParseChannel converts user input into a Channel. Matching is case
// insensitive; "devedition" is accepted as an alias of aurora.
func ParseChannel(name string) (Channel, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "devedition" {
		normalized = string(Aurora)
	}
	ch := Channel(normalized)
	if _, ok := channels[ch]; !ok {
		return "", newErrUnknownChannel(name)
	}
	return ch, nil
}

// ParseChannels parses a list of channel names, failing on the first unknown one.
func ParseChannels(names []string) ([]Channel, error) {
	result := make([]Channel, 0, len(names))
	for _, name := range names {
		ch, err := ParseChannel(name)
		if err != nil {
			return nil, err
		}
		result = append(result, ch)
	}
	return result, nil
}
