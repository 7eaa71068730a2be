package cache

import "strings"

// Pattern is a compiled glob for matching cache keys.
//
// '*' matches any run of characters (including none), '?' matches exactly
// one character, and everything else matches itself. There is no escaping,
// no character classes, and '/' or ':' have no special meaning.
type Pattern struct {
	raw     string
	runes   []rune
	literal bool
}

// CompilePattern compiles glob for repeated matching.
func CompilePattern(glob string) Pattern {
	return Pattern{
		raw:     glob,
		runes:   []rune(glob),
		literal: !strings.ContainsAny(glob, "*?"),
	}
}

// MatchPattern reports whether key matches glob.
func MatchPattern(glob, key string) bool {
	return CompilePattern(glob).Match(key)
}

// String returns the source glob.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether key matches the pattern.
func (p Pattern) Match(key string) bool {
	if p.literal {
		return key == p.raw
	}

	s := []rune(key)
	pat := p.runes
	pi, si := 0, 0
	star, mark := -1, 0

	for si < len(s) {
		switch {
		case pi < len(pat) && (pat[pi] == '?' || pat[pi] == s[si]):
			pi++
			si++
		case pi < len(pat) && pat[pi] == '*':
			// Remember the star and first try matching it against nothing.
			star, mark = pi, si
			pi++
		case star >= 0:
			// Let the last star absorb one more character.
			mark++
			pi, si = star+1, mark
		default:
			return false
		}
	}

	for pi < len(pat) && pat[pi] == '*' {
		pi++
	}
	return pi == len(pat)
}
