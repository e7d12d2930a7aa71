package repro

import "strings"

// splitSQL splits a script on semicolons outside of quoted identifiers,
// string literals and comments. SQLite escapes a quote by doubling it, which
// the toggling below handles without lookahead.
func splitSQL(input string) []string {
	var (
		out   []string
		buf   strings.Builder
		quote byte
	)
	flush := func() {
		if stmt := strings.TrimSpace(buf.String()); stmt != "" {
			out = append(out, stmt)
		}
		buf.Reset()
	}
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if quote != 0 {
			buf.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '[':
			quote = ']'
		case ch == '-' && i+1 < len(input) && input[i+1] == '-':
			end := strings.IndexByte(input[i:], '\n')
			if end < 0 {
				i = len(input)
			} else {
				i += end - 1
			}
			continue
		case ch == '/' && i+1 < len(input) && input[i+1] == '*':
			end := strings.Index(input[i+2:], "*/")
			if end < 0 {
				i = len(input)
			} else {
				i += end + 3
			}
			continue
		case ch == ';':
			flush()
			continue
		}
		buf.WriteByte(ch)
	}
	flush()
	return out
}
