package catalog

import (
	"github.com/agnivade/levenshtein"
	"github.com/samber/lo"
)

// maxSuggestionDistance bounds how far a typo may be from a known name before
// we stop suggesting it.
const maxSuggestionDistance = 3

// ErrUnknownChannel is returned when a channel name or value is not in the catalog
type ErrUnknownChannel struct {
	Name       string
	Suggestion string
}

func (e *ErrUnknownChannel) Error() string {
	msg := "unknown channel: " + e.Name
	if e.Suggestion != "" {
		msg += " (did you mean " + e.Suggestion + "?)"
	}
	return msg
}

// ErrUnknownPlatform is returned when a platform name or value is not in the catalog
type ErrUnknownPlatform struct {
	Name       string
	Suggestion string
}

func (e *ErrUnknownPlatform) Error() string {
	msg := "unknown platform: " + e.Name
	if e.Suggestion != "" {
		msg += " (did you mean " + e.Suggestion + "?)"
	}
	return msg
}

func newErrUnknownChannel(name string) *ErrUnknownChannel {
	return &ErrUnknownChannel{
		Name:       name,
		Suggestion: suggest(name, lo.Map(channelOrder, func(c Channel, _ int) string { return string(c) })),
	}
}

func newErrUnknownPlatform(name string) *ErrUnknownPlatform {
	return &ErrUnknownPlatform{
		Name:       name,
		Suggestion: suggest(name, lo.Map(platformOrder, func(p Platform, _ int) string { return string(p) })),
	}
}

// suggest returns the closest known name, or "" if nothing is close enough.
func suggest(name string, known []string) string {
	if name == "" {
		return ""
	}
	best, bestDistance := "", maxSuggestionDistance+1
	for _, candidate := range known {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	return best
}
