package ast

// likeMatch implements LIKE without an ESCAPE clause: % matches any run,
// _ matches one character, ASCII letters compare case-insensitively.
func likeMatch(s, pattern []rune) bool {
	return wildcardMatch(s, pattern, '%', '_', func(p []rune, i int, c rune) (int, bool) {
		return i + 1, foldASCII(p[i]) == foldASCII(c)
	})
}

// globMatch implements GLOB: * matches any run, ? matches one character and
// [...] matches a set, with ^ inverting it. Matching is case-sensitive.
func globMatch(s, pattern []rune) bool {
	return wildcardMatch(s, pattern, '*', '?', func(p []rune, i int, c rune) (int, bool) {
		if p[i] == '[' {
			return matchSet(p, i, c)
		}
		return i + 1, p[i] == c
	})
}

// wildcardMatch runs a dynamic program over pattern positions. single
// consumes the pattern element at i against c and returns the next index;
// a next index of -1 means the element is malformed and never matches.
func wildcardMatch(s, p []rune, many, one rune, single func(p []rune, i int, c rune) (int, bool)) bool {
	// cur[i] reports whether p[i:] is reachable after consuming a prefix of s.
	cur := make([]bool, len(p)+1)
	cur[0] = true
	closeStars := func(set []bool) {
		for i := 0; i < len(p); i++ {
			if set[i] && p[i] == many {
				set[i+1] = true
			}
		}
	}
	closeStars(cur)
	for _, c := range s {
		next := make([]bool, len(p)+1)
		for i := 0; i < len(p); i++ {
			if !cur[i] {
				continue
			}
			switch p[i] {
			case many:
				next[i] = true
			case one:
				next[i+1] = true
			default:
				if j, ok := single(p, i, c); ok && j >= 0 {
					next[j] = true
				}
			}
		}
		closeStars(next)
		cur = next
	}
	return cur[len(p)]
}

// matchSet matches c against the bracket expression starting at p[i].
func matchSet(p []rune, i int, c rune) (int, bool) {
	j := i + 1
	invert := false
	if j < len(p) && p[j] == '^' {
		invert = true
		j++
	}
	start := j
	matched := false
	for ; j < len(p); j++ {
		r := p[j]
		if r == ']' && j > start {
			if invert {
				matched = !matched
			}
			return j + 1, matched
		}
		if r == '-' && j > start && j+1 < len(p) && p[j+1] != ']' {
			lo, hi := p[j-1], p[j+1]
			if lo <= c && c <= hi || c == lo || c == hi {
				matched = true
			}
			j++
			continue
		}
		if r == c {
			matched = true
		}
	}
	return -1, false
}

func foldASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + 'a' - 'A'
	}
	return r
}
