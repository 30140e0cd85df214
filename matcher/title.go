// Package matcher compiles and evaluates page title patterns.
//
// Patterns are written the way a browser test runner writes them: either a
// regex literal such as /lifeline/i or a bare source string. A bare source is
// always matched case-insensitively.
package matcher

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds a single evaluation against pathological patterns.
const matchTimeout = time.Second

// Title is a compiled title pattern. It is safe for concurrent use.
type Title struct {
	source string
	flags  string
	re     *regexp2.Regexp
}

// Compile parses pattern as a regex literal (/source/flags) or a bare source.
// Supported flags: i, m, s; g and u are accepted and ignored.
func Compile(pattern string) (*Title, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("matcher: empty title pattern")
	}

	source, flags, literal := splitLiteral(pattern)
	if !literal {
		source, flags = pattern, "i"
	}

	opts := regexp2.RegexOptions(0)
	seen := make(map[rune]bool, len(flags))
	kept := make([]string, 0, len(flags))
	for _, f := range flags {
		if seen[f] {
			return nil, fmt.Errorf("matcher: duplicate flag %q in %s", f, pattern)
		}
		seen[f] = true

		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'g', 'u':
			continue
		default:
			return nil, fmt.Errorf("matcher: unsupported flag %q in %s", f, pattern)
		}
		kept = append(kept, string(f))
	}
	// regexp2 rejects ECMAScript combined with Singleline.
	if opts&regexp2.Singleline == 0 {
		opts |= regexp2.ECMAScript
	}

	re, err := regexp2.Compile(source, opts)
	if err != nil {
		return nil, fmt.Errorf("matcher: compile %s: %w", pattern, err)
	}
	re.MatchTimeout = matchTimeout

	sort.Strings(kept)
	return &Title{source: source, flags: strings.Join(kept, ""), re: re}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string) *Title {
	t, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return t
}

// Match reports whether title contains a match of the pattern.
// A match that exceeds the evaluation timeout counts as no match.
func (t *Title) Match(title string) bool {
	ok, err := t.re.MatchString(title)
	return err == nil && ok
}

// String returns the pattern in literal form, e.g. /lifeline/i.
func (t *Title) String() string {
	return "/" + t.source + "/" + t.flags
}

// splitLiteral splits "/source/flags". The last slash ends the source, so
// escaped slashes inside the source are preserved.
func splitLiteral(pattern string) (source, flags string, ok bool) {
	if len(pattern) < 2 || pattern[0] != '/' {
		return "", "", false
	}
	end := strings.LastIndexByte(pattern, '/')
	if end <= 0 {
		return "", "", false
	}
	source = pattern[1:end]
	if source == "" {
		return "", "", false
	}
	return source, pattern[end+1:], true
}
