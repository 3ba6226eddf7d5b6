package pubsub

// MatchPattern reports whether channel matches a Redis PSUBSCRIBE style
// glob: '*' matches any run, '?' one byte, '[...]' a class ('^' negates,
// 'a-z' ranges) and '\' escapes the next byte. Unlike path.Match there is
// no separator character.
func MatchPattern(pattern, channel string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 1 && pattern[1] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(channel); i++ {
				if MatchPattern(pattern[1:], channel[i:]) {
					return true
				}
			}
			return false

		case '?':
			if len(channel) == 0 {
				return false
			}
			pattern, channel = pattern[1:], channel[1:]

		case '[':
			if len(channel) == 0 {
				return false
			}
			rest, ok := matchClass(pattern[1:], channel[0])
			if !ok {
				return false
			}
			pattern, channel = rest, channel[1:]

		case '\\':
			if len(pattern) >= 2 {
				pattern = pattern[1:]
			}
			fallthrough

		default:
			if len(channel) == 0 || pattern[0] != channel[0] {
				return false
			}
			pattern, channel = pattern[1:], channel[1:]
		}
	}
	return len(channel) == 0
}

// matchClass matches c against the class body starting right after '['
// and returns the pattern remaining after the closing ']'.
func matchClass(p string, c byte) (string, bool) {
	negate := false
	if len(p) > 0 && p[0] == '^' {
		negate = true
		p = p[1:]
	}

	matched := false
	for len(p) > 0 && p[0] != ']' {
		switch {
		case p[0] == '\\' && len(p) >= 2:
			if p[1] == c {
				matched = true
			}
			p = p[2:]
		case len(p) >= 3 && p[1] == '-' && p[2] != ']':
			lo, hi := p[0], p[2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				matched = true
			}
			p = p[3:]
		default:
			if p[0] == c {
				matched = true
			}
			p = p[1:]
		}
	}
	if len(p) > 0 {
		p = p[1:] // ']'
	}

	if negate {
		matched = !matched
	}
	return p, matched
}
