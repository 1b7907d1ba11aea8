package repair

import (
	"fmt"
	"strings"
)

// Language holds everything host-language specific the text heuristics need.
// The parser is supplied separately.
type Language struct {
	Name          string
	BlockOpener   string
	IndentUnit    string
	CommentPrefix string

	ImportPrefixes     []string
	DefinitionPrefixes []string
	ClassPrefixes      []string
	// Continuations close a block and start a sibling one (else, except...).
	Continuations []string
	Decorator     string

	// Keywords suppress arithmetic spacing after them (return -1, not x).
	Keywords map[string]bool
	// Reserved names are never reported as undefined.
	Reserved map[string]bool

	FalseLiteral    string
	EmptySeqLiteral string
	NullLiteral     string

	BoolPrefixes  []string
	SeqSuffixes   []string
	CommonModules []string
}

var pythonKeywords = []string{
	"False", "None", "True", "and", "as", "assert", "async", "await", "break",
	"class", "continue", "def", "del", "elif", "else", "except", "finally",
	"for", "from", "global", "if", "import", "in", "is", "lambda", "nonlocal",
	"not", "or", "pass", "raise", "return", "try", "while", "with", "yield",
	"case",
}

var pythonReserved = []string{
	"match", "_",
	// conventional receivers
	"self", "cls",
	// builtins
	"abs", "aiter", "all", "anext", "any", "ascii", "bin", "bool", "breakpoint",
	"bytearray", "bytes", "callable", "chr", "classmethod", "compile", "complex",
	"delattr", "dict", "dir", "divmod", "enumerate", "eval", "exec", "filter",
	"float", "format", "frozenset", "getattr", "globals", "hasattr", "hash",
	"help", "hex", "id", "input", "int", "isinstance", "issubclass", "iter",
	"len", "list", "locals", "map", "max", "memoryview", "min", "next", "object",
	"oct", "open", "ord", "pow", "print", "property", "range", "repr",
	"reversed", "round", "set", "setattr", "slice", "sorted", "staticmethod",
	"str", "sum", "super", "tuple", "type", "vars", "zip", "__import__",
	"__name__", "__file__", "__doc__", "__main__", "NotImplemented", "Ellipsis",
	"exit", "quit",
	// exceptions
	"BaseException", "Exception", "ArithmeticError", "AssertionError",
	"AttributeError", "EOFError", "FileExistsError", "FileNotFoundError",
	"ImportError", "IndexError", "KeyError", "KeyboardInterrupt",
	"LookupError", "MemoryError", "ModuleNotFoundError", "NameError",
	"NotImplementedError", "OSError", "IOError", "OverflowError",
	"PermissionError", "RecursionError", "RuntimeError", "StopIteration",
	"StopAsyncIteration", "SyntaxError", "SystemExit", "TimeoutError",
	"TypeError", "UnicodeDecodeError", "UnicodeEncodeError", "ValueError",
	"ZeroDivisionError", "Warning", "DeprecationWarning", "UserWarning",
}

var pythonContinuations = []string{
	"elif ", "elif(", "else:", "else ", "except:", "except ", "except(",
	"finally:", "finally ",
}

// Python returns the profile for Python 3 sources.
func Python() *Language {
	keywords := make(map[string]bool, len(pythonKeywords))
	reserved := make(map[string]bool, len(pythonKeywords)+len(pythonReserved))
	for _, name := range pythonKeywords {
		keywords[name] = true
		reserved[name] = true
	}
	for _, name := range pythonReserved {
		reserved[name] = true
	}
	return &Language{
		Name:               "python",
		BlockOpener:        ":",
		IndentUnit:         "    ",
		CommentPrefix:      "#",
		ImportPrefixes:     []string{"import ", "from "},
		DefinitionPrefixes: []string{"def ", "async def "},
		ClassPrefixes:      []string{"class "},
		Continuations:      pythonContinuations,
		Decorator:          "@",
		Keywords:           keywords,
		Reserved:           reserved,
		FalseLiteral:       "False",
		EmptySeqLiteral:    "[]",
		NullLiteral:        "None",
		BoolPrefixes:       []string{"is_", "has_", "can_", "should_"},
		SeqSuffixes:        []string{"_list", "_items", "_array", "_collection"},
		CommonModules: []string{
			"os", "sys", "re", "json", "math", "time", "datetime", "random",
			"collections", "itertools", "functools", "typing", "pathlib",
			"subprocess", "logging",
		},
	}
}

// LanguageByName resolves a configured language name.
func LanguageByName(name string) (*Language, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "python", "python3", "py":
		return Python(), nil
	default:
		return nil, fmt.Errorf("unsupported language %q", name)
	}
}

// WithIndentUnit returns a copy of the profile using unit as one indentation
// level. An empty unit keeps the default.
func (l *Language) WithIndentUnit(unit string) *Language {
	cp := *l
	if unit != "" {
		cp.IndentUnit = unit
	}
	return &cp
}

func (l *Language) isImport(trimmed string) bool {
	return hasAnyPrefix(trimmed, l.ImportPrefixes)
}

func (l *Language) isDefinition(trimmed string) bool {
	return hasAnyPrefix(trimmed, l.DefinitionPrefixes)
}

func (l *Language) isClass(trimmed string) bool {
	return hasAnyPrefix(trimmed, l.ClassPrefixes)
}

func (l *Language) isComment(trimmed string) bool {
	return strings.HasPrefix(trimmed, l.CommentPrefix)
}

// endsBlock reports whether trimmed stops the formatter from carrying a body
// indentation onto it.
func (l *Language) endsBlock(trimmed string) bool {
	return l.isDefinition(trimmed) || l.isClass(trimmed) ||
		(l.Decorator != "" && strings.HasPrefix(trimmed, l.Decorator)) ||
		hasAnyPrefix(trimmed, l.Continuations)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, p := range suffixes {
		if strings.HasSuffix(s, p) {
			return true
		}
	}
	return false
}
