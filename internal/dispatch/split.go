package dispatch

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// DiscordMessageCap is Discord's hard per-message character cap, always
// enforced regardless of the split flag.
const DiscordMessageCap = 2000

// SplitWhatsApp splits text on the literal two-newline boundary when
// split is true; segments are otherwise returned unchanged (the
// WhatsApp/Evolution provider has no documented hard cap comparable to
// Discord's).
func SplitWhatsApp(text string, split bool) []string {
	if !split {
		return []string{text}
	}
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// SplitDiscord enforces DiscordMessageCap unconditionally. When split is
// true it prefers the two-newline boundary, then sentence, then word
// boundaries before falling back to a hard character cut; when false it
// skips the two-newline preference but still falls back to
// sentence/word boundaries to stay within the cap.
func SplitDiscord(text string, split bool) []string {
	var segments []string
	if split {
		for _, para := range strings.Split(text, "\n\n") {
			segments = append(segments, splitToCapDiscord(para)...)
		}
	} else {
		segments = splitToCapDiscord(text)
	}
	out := segments[:0]
	for _, s := range segments {
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// splitToCapDiscord breaks text into chunks no longer (by display width)
// than DiscordMessageCap, preferring sentence then word boundaries
// before falling back to a hard rune-safe cut via go-runewidth.
func splitToCapDiscord(text string) []string {
	var out []string
	for runewidth.StringWidth(text) > DiscordMessageCap {
		cut := findBoundary(text, DiscordMessageCap)
		out = append(out, strings.TrimRight(text[:cut], " \n"))
		text = strings.TrimLeft(text[cut:], " \n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// findBoundary returns the byte offset of the best split point at or
// before cap runes of display width: sentence boundary (". "), else
// word boundary (" "), else a hard rune-safe cut.
func findBoundary(text string, cap int) int {
	truncated := runewidth.Truncate(text, cap, "")
	limit := len(truncated)
	if limit == 0 {
		limit = len(text)
	}

	if idx := strings.LastIndex(text[:limit], ". "); idx > limit/2 {
		return idx + 2
	}
	if idx := strings.LastIndex(text[:limit], " "); idx > limit/2 {
		return idx + 1
	}
	return limit
}
