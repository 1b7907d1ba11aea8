package repair

import "strings"

// findAssignment locates the first assignment operator at bracket depth 0 of
// a code mask, including augmented forms. Comparisons and := are skipped.
// It returns the operator span, or -1, -1.
func findAssignment(code string) (start, end int) {
	depth := 0
	for k := 0; k < len(code); k++ {
		c := code[k]
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case '=':
			if depth > 0 {
				continue
			}
			if k+1 < len(code) && code[k+1] == '=' {
				k++
				continue
			}
			start = k
			if k > 0 {
				p := code[k-1]
				switch {
				case p == '!' || p == ':' || p == '=':
					continue
				case p == '<' || p == '>':
					if k < 2 || code[k-2] != p {
						continue
					}
					start = k - 2
				case p == '*' || p == '/':
					start = k - 1
					if k >= 2 && code[k-2] == p {
						start = k - 2
					}
				case strings.IndexByte("+-%&|^@", p) >= 0:
					start = k - 1
				}
			}
			return start, k + 1
		}
	}
	return -1, -1
}

// ident is one identifier-shaped token of a code mask.
type ident struct {
	name  string
	start int
	end   int
	depth int
}

// identifiers lists the name tokens of a code mask in order. Numeric literals
// are skipped.
func identifiers(code string) []ident {
	var out []ident
	depth := 0
	for k := 0; k < len(code); {
		c := code[k]
		switch {
		case c == '(' || c == '[' || c == '{':
			depth++
			k++
		case c == ')' || c == ']' || c == '}':
			if depth > 0 {
				depth--
			}
			k++
		case isDigitByte(c):
			for k < len(code) && (isWordByte(code[k]) || code[k] == '.') {
				k++
			}
		case isWordByte(c):
			start := k
			for k < len(code) && isWordByte(code[k]) {
				k++
			}
			out = append(out, ident{name: code[start:k], start: start, end: k, depth: depth})
		default:
			k++
		}
	}
	return out
}

// prevByte returns the closest non-blank byte before pos, or 0.
func prevByte(code string, pos int) byte {
	for k := pos - 1; k >= 0; k-- {
		if code[k] != ' ' && code[k] != '\t' {
			return code[k]
		}
	}
	return 0
}

// nextBytes returns the code after pos with leading blanks removed.
func nextBytes(code string, pos int) string {
	return strings.TrimLeft(code[pos:], " \t")
}
