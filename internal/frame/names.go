package frame

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxNameLen is the shortest identifier limit among the supported backends
// (Postgres, 63 bytes).
const maxNameLen = 63

// NormalizeName converts a header cell into a lowercase identifier made of
// [a-z0-9_]. Separators become a single underscore; other characters are
// dropped.
func NormalizeName(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		if r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';' || r == '\t' {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			lastUnderscore = r == '_'
		}
	}

	return truncateName(strings.Trim(b.String(), "_"))
}

func truncateName(s string) string {
	if len(s) <= maxNameLen {
		return s
	}
	cut := maxNameLen
	for cut > 0 && !utf8.ValidString(s[:cut]) {
		cut--
	}
	return s[:cut]
}

// UniqueNames normalizes every header and resolves collisions. An empty
// result becomes "column_<n>" (1-based position); repeats get "_2", "_3", ...
// in order of appearance. mapped, when non-nil, replaces a raw header before
// normalization.
func UniqueNames(headers []string, mapped map[string]string) []string {
	out := make([]string, len(headers))
	used := make(map[string]bool, len(headers))
	for i, h := range headers {
		raw := strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if m, ok := mapped[raw]; ok {
			raw = m
		}
		name := NormalizeName(raw)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if used[name] {
			for n := 2; ; n++ {
				suffix := "_" + strconv.Itoa(n)
				cand := name
				if len(cand)+len(suffix) > maxNameLen {
					// normalized names are ASCII, so a byte cut is safe
					cand = cand[:maxNameLen-len(suffix)]
				}
				cand += suffix
				if !used[cand] {
					name = cand
					break
				}
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}
