package syntax

// Statement-shape rules applied to each logical line once it is complete.

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

var compoundKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "for": true, "while": true,
	"try": true, "except": true, "finally": true, "with": true, "def": true,
	"class": true,
}

// leadingOnly keywords may only start a small statement.
var leadingOnly = map[string]bool{
	"def": true, "class": true, "return": true, "pass": true, "break": true,
	"continue": true, "global": true, "nonlocal": true, "del": true,
	"assert": true, "while": true, "try": true, "except": true,
	"finally": true, "with": true, "elif": true, "raise": true, "import": true,
}

// danglingKeywords cannot end an expression.
var danglingKeywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true,
	"if": true, "else": true, "lambda": true,
}

var binaryOnly = map[string]bool{
	"=": true, "==": true, "!=": true, "<": true, ">": true, "<=": true,
	">=": true, "*": true, "/": true, "//": true, "%": true, "@": true,
	"**": true, "|": true, "&": true, "^": true, "<<": true, ">>": true,
	".": true, ":=": true, "->": true, "+=": true, "-=": true, "*=": true,
	"/=": true, "//=": true, "%=": true, "@=": true, "&=": true, "|=": true,
	"^=": true, ">>=": true, "<<=": true, "**=": true,
}

// needsOperand is true for operators that must be followed by an operand.
func needsOperand(t token) bool {
	if t.kind != tokOp {
		return false
	}
	return binaryOnly[t.text] || t.text == "+" || t.text == "-" || t.text == "~"
}

// cannotFollowOperator is true for tokens that may never directly follow an
// operator or an opening bracket. Star operators are excluded because of
// unpacking (f(*a), {**b}, x = *a, *b).
func cannotFollowOperator(t token) bool {
	return t.kind == tokOp && binaryOnly[t.text] && t.text != "*" && t.text != "**"
}

func isOpenBracket(t token) bool {
	return t.kind == tokOp && (t.text == "(" || t.text == "[" || t.text == "{")
}

func isCloseBracket(t token) bool {
	return t.kind == tokOp && (t.text == ")" || t.text == "]" || t.text == "}")
}

func isOperandName(t token) bool {
	if t.kind != tokName {
		return false
	}
	if !keywords[t.text] {
		return true
	}
	return t.text == "True" || t.text == "False" || t.text == "None"
}

func operandEnd(t token) bool {
	return isOperandName(t) || t.kind == tokNumber || t.kind == tokString ||
		isCloseBracket(t) || (t.kind == tokOp && t.text == "...")
}

func operandStart(t token) bool {
	return isOperandName(t) || t.kind == tokNumber || t.kind == tokString ||
		(t.kind == tokOp && t.text == "...")
}

func invalid(t token, detail string) *Error {
	msg := "invalid syntax"
	if detail != "" {
		msg += " (" + detail + ")"
	}
	return &Error{Line: t.line, Column: t.col, Message: msg, Kind: KindInvalidSyntax}
}

// indexDepth0 returns the index of the first op token text at bracket depth 0.
func indexDepth0(toks []token, text string) int {
	depth := 0
	for i, t := range toks {
		switch {
		case isOpenBracket(t):
			depth++
		case isCloseBracket(t):
			depth--
		case depth == 0 && t.kind == tokOp && t.text == text:
			return i
		}
	}
	return -1
}

func splitDepth0(toks []token, sep string) [][]token {
	var parts [][]token
	depth, start := 0, 0
	for i, t := range toks {
		switch {
		case isOpenBracket(t):
			depth++
		case isCloseBracket(t):
			depth--
		case depth == 0 && t.kind == tokOp && t.text == sep:
			parts = append(parts, toks[start:i])
			start = i + 1
		}
	}
	return append(parts, toks[start:])
}

func compoundKeyword(toks []token) string {
	first := toks[0]
	if first.kind != tokName {
		return ""
	}
	if compoundKeywords[first.text] {
		return first.text
	}
	if first.text == "async" && len(toks) > 1 {
		switch toks[1].text {
		case "def", "for", "with":
			return toks[1].text
		}
	}
	if (first.text == "match" || first.text == "case") && len(toks) > 2 {
		last := toks[len(toks)-1]
		second := toks[1]
		if last.kind == tokOp && last.text == ":" && (second.kind != tokOp || isOpenBracket(second) || second.text == "-") {
			return first.text
		}
	}
	return ""
}

// checkStatement validates one logical line and reports whether it opens an
// indented block.
func checkStatement(ll *logicalLine) (bool, error) {
	toks := ll.tokens
	kw := compoundKeyword(toks)
	if kw == "" {
		return false, checkSimple(toks)
	}

	colon := indexDepth0(toks, ":")
	if colon < 0 {
		return false, invalid(toks[len(toks)-1], "expected ':'")
	}
	head, body := toks[:colon], toks[colon+1:]
	if head[0].text == "async" {
		head = head[1:]
	}
	if err := checkHeader(kw, head, toks[colon]); err != nil {
		return false, err
	}
	if len(body) == 0 {
		return true, nil
	}
	return false, checkSimple(body)
}

func checkHeader(kw string, head []token, colon token) error {
	switch kw {
	case "else", "try", "finally":
		if len(head) != 1 {
			return invalid(head[1], "")
		}
		return nil
	case "def":
		if len(head) < 3 || !isOperandName(head[1]) || head[2].text != "(" {
			return invalid(head[min(1, len(head)-1)], "")
		}
		return checkTokens(head[2:])
	case "class":
		if len(head) < 2 || !isOperandName(head[1]) {
			return invalid(head[min(1, len(head)-1)], "")
		}
		if len(head) > 2 && head[2].text != "(" {
			return invalid(head[2], "")
		}
		if len(head) > 2 {
			return checkTokens(head[2:])
		}
		return nil
	case "except":
		if len(head) == 1 {
			return nil
		}
	case "for":
		if len(head) < 2 {
			return invalid(colon, "")
		}
		found := false
		for _, t := range head[1:] {
			if t.kind == tokName && t.text == "in" {
				found = true
				break
			}
		}
		if !found {
			return invalid(colon, "expected 'in'")
		}
	}
	if len(head) < 2 {
		return invalid(colon, "")
	}
	return checkTokens(head[1:])
}

func checkSimple(toks []token) error {
	parts := splitDepth0(toks, ";")
	for i, part := range parts {
		if len(part) == 0 {
			// a single trailing ';' is allowed
			if i == len(parts)-1 && i > 0 {
				continue
			}
			return invalid(toks[0], "")
		}
		if err := checkSmall(part); err != nil {
			return err
		}
	}
	return nil
}

func checkSmall(toks []token) error {
	first := toks[0]
	if first.kind == tokOp && first.text == "@" {
		if len(toks) == 1 {
			return invalid(first, "")
		}
		return checkTokens(toks[1:])
	}
	if first.kind == tokName && keywords[first.text] {
		switch first.text {
		case "import":
			return checkImport(toks)
		case "from":
			return checkFromImport(toks)
		case "pass", "break", "continue":
			if len(toks) != 1 {
				return invalid(toks[1], "")
			}
			return nil
		case "return", "raise", "del", "assert", "global", "nonlocal", "yield", "await":
			if len(toks) == 1 {
				if first.text == "del" || first.text == "assert" || first.text == "global" ||
					first.text == "nonlocal" || first.text == "await" {
					return invalid(first, "")
				}
				return nil
			}
			return checkTokens(toks[1:])
		default:
			if compoundKeywords[first.text] {
				return invalid(first, "")
			}
		}
	}
	return checkTokens(toks)
}

// checkTokens applies the operator/operand placement rules to an expression or
// assignment statement.
func checkTokens(toks []token) error {
	if len(toks) == 0 {
		return nil
	}
	first := toks[0]
	if cannotFollowOperator(first) || isCloseBracket(first) || (first.kind == tokOp && first.text == ",") {
		return invalid(first, "")
	}
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if i > 0 && t.kind == tokName && leadingOnly[t.text] {
			return invalid(t, "")
		}
		if i == 0 {
			continue
		}
		prev := toks[i-1]
		switch {
		case operandEnd(prev) && operandStart(t) && !(prev.kind == tokString && t.kind == tokString):
			return invalid(t, "")
		case needsOperand(prev) && (cannotFollowOperator(t) || isCloseBracket(t)):
			return invalid(t, "")
		case isOpenBracket(prev) && (cannotFollowOperator(t) || (t.kind == tokOp && t.text == ",")):
			return invalid(t, "")
		case prev.kind == tokOp && prev.text == "," && t.kind == tokOp && t.text == ",":
			return invalid(t, "")
		}
	}

	last := toks[len(toks)-1]
	if needsOperand(last) {
		return invalid(last, "")
	}
	if len(toks) > 1 && last.kind == tokName && danglingKeywords[last.text] {
		return invalid(last, "")
	}

	if colon := indexDepth0(toks, ":"); colon >= 0 {
		if !hasKeyword(toks[:colon], "lambda") && !isAnnotation(toks, colon) {
			return invalid(toks[colon], "")
		}
	}
	return nil
}

func hasKeyword(toks []token, kw string) bool {
	for _, t := range toks {
		if t.kind == tokName && t.text == kw {
			return true
		}
	}
	return false
}

// isAnnotation reports whether the colon at index colon introduces a variable
// annotation such as "x: int = 5".
func isAnnotation(toks []token, colon int) bool {
	if colon == 0 || colon == len(toks)-1 {
		return false
	}
	for _, t := range toks[:colon] {
		if t.kind == tokOp && binaryOnly[t.text] && t.text != "." {
			return false
		}
	}
	return true
}

func checkImport(toks []token) error {
	if len(toks) < 2 {
		return invalid(toks[0], "")
	}
	expectName := true
	for i := 1; i < len(toks); i++ {
		t := toks[i]
		if expectName {
			if !isOperandName(t) {
				return invalid(t, "")
			}
			expectName = false
			continue
		}
		switch {
		case t.kind == tokOp && (t.text == "." || t.text == ","):
			expectName = true
		case t.kind == tokName && t.text == "as":
			expectName = true
		default:
			return invalid(t, "")
		}
	}
	if expectName {
		return invalid(toks[len(toks)-1], "")
	}
	return nil
}

func checkFromImport(toks []token) error {
	imp := -1
	for i, t := range toks {
		if t.kind == tokName && t.text == "import" {
			imp = i
			break
		}
	}
	if imp < 2 || imp == len(toks)-1 {
		return invalid(toks[len(toks)-1], "")
	}
	for _, t := range toks[1:imp] {
		if !(isOperandName(t) || (t.kind == tokOp && (t.text == "." || t.text == "..."))) {
			return invalid(t, "")
		}
	}
	for _, t := range toks[imp+1:] {
		ok := isOperandName(t) || (t.kind == tokName && t.text == "as") ||
			(t.kind == tokOp && (t.text == "," || t.text == "(" || t.text == ")" || t.text == "*"))
		if !ok {
			return invalid(t, "")
		}
	}
	return nil
}
