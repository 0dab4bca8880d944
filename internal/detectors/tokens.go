package detectors

import (
	"regexp"
	"unicode"

	"github.com/spaolacci/murmur3"
)

// no trailing period allowed, so URLs at the end of a sentence extract cleanly
var urlRegex = regexp.MustCompile(`(?:(?:https?|ftp):\/\/)?[\w/\-?=%.]+\.[\w/\-&?=%.]*[\w/\-&?=%]+`)

var mentionRegex = regexp.MustCompile(`<@!?\d+>`)

var customEmojiRegex = regexp.MustCompile(`<a?:\w+:\d+>`)

// ExtractURLs returns URL-like substrings. This is intentionally loose: it
// also matches bare "example.com" fragments.
func ExtractURLs(raw string) []string {
	return urlRegex.FindAllString(raw, -1)
}

// CountMentions counts user-mention tokens.
func CountMentions(content string) int {
	return len(mentionRegex.FindAllStringIndex(content, -1))
}

// CountEmojis counts custom emoji tokens plus unicode emoji code points.
func CountEmojis(content string) int {
	n := len(customEmojiRegex.FindAllStringIndex(content, -1))
	for _, r := range content {
		if isEmoji(r) {
			n++
		}
	}
	return n
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	case r >= 0x1F300 && r <= 0x1F6FF:
		return true
	case r >= 0x1F900 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	}
	return false
}

// MaxCharCount returns the highest number of times any single non-space
// character occurs anywhere in content.
func MaxCharCount(content string) int {
	counts := make(map[rune]int)
	highest := 0
	for _, r := range content {
		if unicode.IsSpace(r) {
			continue
		}
		counts[r]++
		if counts[r] > highest {
			highest = counts[r]
		}
	}
	return highest
}

// MaxCharRun returns the length of the longest run of one repeated
// non-space character.
func MaxCharRun(content string) int {
	highest, run := 0, 0
	prev := rune(-1)
	for _, r := range content {
		if unicode.IsSpace(r) {
			prev, run = -1, 0
			continue
		}
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run > highest {
			highest = run
		}
	}
	return highest
}

// ContentTag is the compact hash stored in spam windows for duplicate checks.
func ContentTag(content string) uint64 {
	return murmur3.Sum64([]byte(content))
}
