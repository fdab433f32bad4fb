// Package scan implements component C2, the include scanner: a lexical
// (not preprocessing) pass over a C/C++ source or header file that finds
// every #include directive in order of appearance, as specified in spec.md
// §4.2. It deliberately knows nothing about -I search paths or resolution —
// that is component C3's job (package depresolve).
//
// The state machine is lifted, directly and almost unchanged, out of the
// teacher's ownIncludesParser.collectIncludeStatementsInFile (VKCOM/nocc
// internal/client/own-includes-parser.go). There it was one method on a
// struct that also did resolution and caching; here it is a standalone,
// dependency-free function, matching spec.md's component boundary (C2 is
// pure parsing, C3 owns resolution).
package scan

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/fbuildtools/fbuild/internal/common"
)

// isWhitespaceOnly reports whether target is empty or made up entirely of
// spaces/tabs, per spec.md §8's boundary property: a whitespace-only include
// target never yields a reportable Directive.
func isWhitespaceOnly(target []byte) bool {
	for _, b := range target {
		if b != ' ' && b != '\t' {
			return false
		}
	}
	return true
}

// DirectiveKind distinguishes #include "x" from #include <x>. Per SPEC_FULL.md
// §4.2, #include_next has no kind of its own: it is reported as Quoted or
// Angle by its delimiter, like an ordinary #include, and spec.md's grammar
// has no separate concept for it.
type DirectiveKind int

const (
	Quoted DirectiveKind = iota
	Angle
)

func (k DirectiveKind) String() string {
	if k == Quoted {
		return "quoted"
	}
	return "angle"
}

// Directive is one #include found in a file, in order of appearance.
type Directive struct {
	Kind   DirectiveKind
	Target string // text between the quotes or angle brackets, unresolved
}

func (d Directive) String() string {
	if d.Kind == Quoted {
		return fmt.Sprintf("#include \"%s\"", d.Target)
	}
	return fmt.Sprintf("#include <%s>", d.Target)
}

// Cache memoizes ScanFile results per canonical path within a build run.
// Concurrent workers in C4/C5 share one Cache safely.
type Cache struct {
	mu   sync.Mutex
	seen map[string][]Directive
}

func NewCache() *Cache {
	return &Cache{seen: make(map[string][]Directive, 256)}
}

// ScanFile returns the ordered list of #include directives in path, reading
// and parsing it at most once per Cache per run.
func (c *Cache) ScanFile(path string) ([]Directive, error) {
	canon, err := common.CanonicalPath(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if cached, ok := c.seen[canon]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	buf, err := os.ReadFile(canon)
	if err != nil {
		return nil, err
	}
	directives := ScanBuffer(buf)

	c.mu.Lock()
	c.seen[canon] = directives
	c.mu.Unlock()
	return directives, nil
}

func strChr(buffer []byte, chr byte, bufferSize int, offset int) int {
	idx := bytes.IndexByte(buffer[offset:bufferSize], chr)
	if idx == -1 {
		return -1
	}
	return idx + offset
}

// ScanBuffer finds every #include / #include_next / #include in buffer, in
// order of appearance. C and C++ style comments are respected: a directive
// inside a comment is never reported. It does nothing about #ifdef, so it can
// report directives a real preprocessor would skip (spec.md §4.2's documented
// over-approximation); it never reports fewer than a preprocessor would,
// provided paths are statically written (no #include MACRO()).
func ScanBuffer(buffer []byte) []Directive {
	const (
		stateNone = iota
		stateAfterHash
		stateAfterInclude
		stateInsideQuoteBrackets
		stateInsideAngleBrackets
	)
	state := stateNone

	var directives []Directive

	bufferSize := len(buffer)
	offset := 0

	// A trailing #endif is common in header guards; it can confuse the
	// "last #" shortcut below by being the last '#' in the file with no
	// include after it, so it's excluded from the search window first.
	lastHash := bytes.LastIndexByte(buffer, '#')
	if lastHash != -1 {
		if lastHash+6 <= bufferSize && string(buffer[lastHash:lastHash+6]) == "#endif" {
			lastHash = bytes.LastIndexByte(buffer[:lastHash], '#')
		}
		if lastHash != -1 {
			newLineIdx := strChr(buffer, '\n', bufferSize, lastHash)
			if newLineIdx != -1 {
				bufferSize = newLineIdx + 1
			}
		}
	}

	nextHash := strChr(buffer, '#', bufferSize, 0)
	nextSlash := strChr(buffer, '/', bufferSize, 0)
	start := 0

Loop:
	for offset < bufferSize {
		switch state {
		case stateNone:
			if nextHash != -1 && nextHash < offset {
				nextHash = strChr(buffer, '#', bufferSize, offset)
			}
			if nextHash == -1 {
				break Loop
			}
			if nextSlash != -1 && nextSlash < offset {
				nextSlash = strChr(buffer, '/', bufferSize, offset)
			}
			if nextSlash != -1 && nextSlash < nextHash {
				offset = nextSlash
				if offset+1 < bufferSize && buffer[offset+1] == '/' {
					offset = strChr(buffer, '\n', bufferSize, offset)
				} else if offset+1 < bufferSize && buffer[offset+1] == '*' {
					for ok := true; ok; ok = offset > 0 && buffer[offset-1] != '*' {
						offset = strChr(buffer, '/', bufferSize, offset+1)
						if offset == -1 {
							break Loop
						}
					}
				}
				if offset == -1 {
					break Loop
				}
			} else {
				offset = nextHash
				state = stateAfterHash
			}

		case stateAfterHash:
			switch buffer[offset] {
			case ' ', '\t':
			default:
				if bufferSize > offset+12 && string(buffer[offset:offset+12]) == "include_next" {
					state = stateAfterInclude
					offset += 11
				} else if bufferSize > offset+7 && string(buffer[offset:offset+7]) == "include" {
					state = stateAfterInclude
					offset += 6
				} else {
					state = stateNone
				}
			}

		case stateAfterInclude:
			switch buffer[offset] {
			case ' ', '\t':
			case '<':
				start = offset + 1
				state = stateInsideAngleBrackets
			case '"':
				start = offset + 1
				state = stateInsideQuoteBrackets
			default:
				state = stateNone
			}

		case stateInsideAngleBrackets:
			switch buffer[offset] {
			case '\n':
				state = stateNone
			case '>':
				if target := buffer[start:offset]; !isWhitespaceOnly(target) {
					directives = append(directives, Directive{Kind: Angle, Target: string(target)})
				}
				state = stateNone
			}

		case stateInsideQuoteBrackets:
			switch buffer[offset] {
			case '\n':
				state = stateNone
			case '"':
				if target := buffer[start:offset]; !isWhitespaceOnly(target) {
					directives = append(directives, Directive{Kind: Quoted, Target: string(target)})
				}
				state = stateNone
			}
		}

		offset++
	}

	return directives
}
