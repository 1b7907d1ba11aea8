package syntax

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// TreeSitterParser checks Python source with the tree-sitter grammar.
// Tree-sitter recovers from errors instead of failing, so the first ERROR or
// MISSING node is translated into an Error with CPython-like wording. Parameter
// lists get the checks CPython applies while compiling (duplicate names and
// defaults ordering), which the grammar alone accepts.
type TreeSitterParser struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewTreeSitterParser creates a tree-sitter backed Python parser.
func NewTreeSitterParser() *TreeSitterParser {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return &TreeSitterParser{parser: parser}
}

// Check implements Parser.
func (p *TreeSitterParser) Check(source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	content := []byte(source)
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil
	}
	if !root.HasError() {
		return checkParameters(root, content)
	}
	node := firstErrorNode(root)
	if node == nil {
		return &Error{Message: "invalid syntax", Kind: KindInvalidSyntax}
	}
	return describeNode(node, content)
}

// firstErrorNode returns the first ERROR or MISSING node in document order.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.IsMissing() || n.Type() == "ERROR" {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if child.IsMissing() || child.HasError() || child.Type() == "ERROR" {
			if found := firstErrorNode(child); found != nil {
				return found
			}
		}
	}
	return nil
}

func describeNode(n *sitter.Node, content []byte) *Error {
	start := n.StartPoint()
	e := &Error{Line: int(start.Row) + 1, Column: int(start.Column) + 1}
	lines := strings.Split(string(content), "\n")

	if n.IsMissing() {
		switch n.Type() {
		case ")", "]", "}":
			e.Message = fmt.Sprintf("unexpected EOF while parsing (missing '%s')", n.Type())
			e.Kind = KindUnclosedBracket
		default:
			e.Message = fmt.Sprintf("invalid syntax (missing '%s')", n.Type())
			e.Kind = KindInvalidSyntax
		}
		return e
	}

	text := n.Content(content)
	switch {
	case hasOpenQuote(text):
		e.Message = fmt.Sprintf("unterminated string literal (detected at line %d)", e.Line)
		e.Kind = KindUnterminatedString
	case strings.ContainsAny(text, "([{") && !balanced(text):
		e.Message = "unexpected EOF while parsing"
		e.Kind = KindUnclosedBracket
	case underIndented(lines, e.Line-1):
		e.Message = "expected an indented block"
		e.Kind = KindIndentation
	default:
		e.Message = "invalid syntax"
		e.Kind = KindInvalidSyntax
	}
	return e
}

// hasOpenQuote reports whether text contains a quote that is never closed on
// its own line.
func hasOpenQuote(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		var open byte
		for i := 0; i < len(line); i++ {
			c := line[i]
			switch {
			case open != 0 && c == '\\':
				i++
			case open != 0 && c == open:
				open = 0
			case open == 0 && c == '#':
				i = len(line)
			case open == 0 && (c == '"' || c == '\''):
				open = c
			}
		}
		if open != 0 {
			return true
		}
	}
	return false
}

func balanced(text string) bool {
	return strings.Count(text, "(") <= strings.Count(text, ")") &&
		strings.Count(text, "[") <= strings.Count(text, "]") &&
		strings.Count(text, "{") <= strings.Count(text, "}")
}

// underIndented reports whether line idx is not indented deeper than the
// closest preceding code line that ends with a block colon.
func underIndented(lines []string, idx int) bool {
	if idx <= 0 || idx >= len(lines) {
		return false
	}
	for j := idx - 1; j >= 0; j-- {
		prev := strings.TrimSpace(lines[j])
		if prev == "" || strings.HasPrefix(prev, "#") {
			continue
		}
		if !strings.HasSuffix(prev, ":") {
			return false
		}
		return indentWidth(lines[idx]) <= indentWidth(lines[j])
	}
	return false
}

func indentWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// checkParameters walks every def and lambda parameter list and returns the
// first one CPython would refuse to compile.
func checkParameters(n *sitter.Node, content []byte) error {
	switch n.Type() {
	case "parameters", "lambda_parameters":
		if err := checkParameterList(n, content); err != nil {
			return err
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child != nil {
			if err := checkParameters(child, content); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkParameterList(list *sitter.Node, content []byte) error {
	seen := make(map[string]bool)
	sawDefault, keywordOnly := false, false

	for i := 0; i < int(list.ChildCount()); i++ {
		param := list.Child(i)
		if param == nil {
			continue
		}
		name, hasDefault, star := "", false, false
		switch param.Type() {
		case "identifier":
			name = param.Content(content)
		case "default_parameter", "typed_default_parameter":
			hasDefault = true
			if id := param.ChildByFieldName("name"); id != nil {
				name = id.Content(content)
			}
		case "typed_parameter":
			if first := param.NamedChild(0); first != nil {
				if first.Type() == "identifier" {
					name = first.Content(content)
				} else {
					name, star = splatName(first, content), true
				}
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			name, star = splatName(param, content), true
		case "keyword_separator", "*":
			star = true
		default:
			continue
		}

		if star {
			keywordOnly = true
		} else if hasDefault {
			sawDefault = true
		} else if sawDefault && !keywordOnly {
			return paramError(param, "parameter without a default follows parameter with a default")
		}
		if name == "" {
			continue
		}
		if seen[name] {
			return paramError(param, fmt.Sprintf("duplicate argument '%s' in function definition", name))
		}
		seen[name] = true
	}
	return nil
}

func splatName(n *sitter.Node, content []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child != nil && child.Type() == "identifier" {
			return child.Content(content)
		}
	}
	return ""
}

func paramError(n *sitter.Node, msg string) *Error {
	start := n.StartPoint()
	return &Error{
		Line:    int(start.Row) + 1,
		Column:  int(start.Column) + 1,
		Message: msg,
		Kind:    KindInvalidSyntax,
	}
}
