// Package glob matches keys against Redis SCAN/KEYS style patterns.
//
// Supported: '*' (any run, including '/'), '?' (one byte), '[abc]', '[^abc]', '[a-z]'
// and '\' escapes. path.Match is not used because its '*' stops at '/'.
package glob

// Match reports whether key matches pattern. An empty pattern matches everything.
func Match(pattern, key string) bool {
	if pattern == "" {
		return true
	}
	return match(pattern, key)
}

func match(p, s string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			for len(p) > 1 && p[1] == '*' {
				p = p[1:]
			}
			if len(p) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if match(p[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			s = s[1:]
			p = p[1:]
		case '[':
			if len(s) == 0 {
				return false
			}
			rest, ok := matchClass(p[1:], s[0])
			if !ok {
				return false
			}
			p = rest
			s = s[1:]
		case '\\':
			if len(p) >= 2 {
				p = p[1:]
			}
			fallthrough
		default:
			if len(s) == 0 || p[0] != s[0] {
				return false
			}
			s = s[1:]
			p = p[1:]
		}
	}
	return len(s) == 0
}

// matchClass consumes a bracket expression (p points past '[') and reports whether c
// is in it. An unterminated class runs to the end of the pattern, as Redis does.
func matchClass(p string, c byte) (rest string, ok bool) {
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

// Contains wraps a substring into a "contains" pattern.
// Metacharacters in sub are passed through, so callers may still use glob syntax.
func Contains(sub string) string {
	return "*" + sub + "*"
}
