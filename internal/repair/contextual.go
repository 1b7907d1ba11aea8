package repair

import (
	"fmt"
	"strings"

	"codemend/internal/logging"
)

// Context is the single-pass model the contextual tier builds of a document.
type Context struct {
	// Imports holds the import lines verbatim (trimmed).
	Imports []string
	// Defined holds every name the document binds anywhere.
	Defined map[string]bool
	// Undefined lists used-but-unbound names in order of first use.
	Undefined []string
	// FirstUse maps each undefined name to its 1-based first line.
	FirstUse map[string]int
	// ModuleUse maps names used as "name." to their 1-based first line.
	ModuleUse map[string]int
}

// BuildContext scans text once and returns its Context.
func BuildContext(lang *Language, text string) *Context {
	lines, _ := splitLines(text)
	infos := scanLines(lines)
	ctx := &Context{
		Defined:   map[string]bool{},
		FirstUse:  map[string]int{},
		ModuleUse: map[string]int{},
	}

	type use struct {
		name string
		line int
	}
	var uses []use

	// open parenthesised import or parameter list spanning lines
	var pending string
	depth := 0

	for i, info := range infos {
		if info.inString || isBlank(info) {
			continue
		}
		code := strings.TrimLeft(info.code, " \t")
		trimmed := strings.TrimSpace(lines[i])
		toks := identifiers(code)
		opens, closes := bracketDelta(code, '(', ')')

		if pending != "" {
			if pending == "import" {
				bindImportNames(ctx.Defined, toks)
			} else {
				bindParams(ctx.Defined, code)
			}
			if depth += opens - closes; depth <= 0 {
				pending = ""
			}
			continue
		}

		switch {
		case lang.isImport(trimmed):
			ctx.Imports = append(ctx.Imports, trimmed)
			bindImport(ctx.Defined, code, toks)
			if opens > closes {
				pending, depth = "import", opens-closes
			}
			continue
		case lang.isDefinition(trimmed):
			bindDefinition(ctx.Defined, code, toks)
			collectModuleUse(ctx, code, toks, i+1)
			if opens > closes {
				pending, depth = "def", opens-closes
			}
			continue
		case lang.isClass(trimmed):
			if len(toks) > 1 {
				ctx.Defined[toks[1].name] = true
			}
			collectModuleUse(ctx, code, toks, i+1)
			continue
		}

		bindKeywordTargets(ctx.Defined, code, toks)
		collectModuleUse(ctx, code, toks, i+1)

		if start, _ := findAssignment(code); start >= 0 {
			bindAssignments(ctx.Defined, code)
			continue
		}
		if len(toks) > 0 && toks[0].start == 0 && !lang.Reserved[toks[0].name] {
			// bare annotation: name: type
			rest := nextBytes(code, toks[0].end)
			if strings.HasPrefix(rest, ":") && !strings.HasPrefix(rest, ":=") {
				ctx.Defined[toks[0].name] = true
			}
		}
		for _, t := range toks {
			if isUse(lang, code, t) {
				uses = append(uses, use{t.name, i + 1})
			}
		}
	}

	for _, u := range uses {
		if ctx.Defined[u.name] {
			continue
		}
		if _, seen := ctx.FirstUse[u.name]; seen {
			continue
		}
		ctx.FirstUse[u.name] = u.line
		ctx.Undefined = append(ctx.Undefined, u.name)
	}
	return ctx
}

// isUse reports whether an identifier token reads a variable.
func isUse(lang *Language, code string, t ident) bool {
	if lang.Reserved[t.name] {
		return false
	}
	if prevByte(code, t.start) == '.' {
		return false
	}
	rest := nextBytes(code, t.end)
	if rest != "" {
		switch rest[0] {
		case '"', '\'':
			return false // string prefix
		case '=':
			// keyword argument
			if t.depth > 0 && !strings.HasPrefix(rest, "==") {
				return false
			}
		}
	}
	return true
}

func collectModuleUse(ctx *Context, code string, toks []ident, line int) {
	for _, t := range toks {
		if prevByte(code, t.start) == '.' {
			continue
		}
		if strings.HasPrefix(nextBytes(code, t.end), ".") {
			if _, seen := ctx.ModuleUse[t.name]; !seen {
				ctx.ModuleUse[t.name] = line
			}
		}
	}
}

// bindImport records the names an import statement binds.
func bindImport(defined map[string]bool, code string, toks []ident) {
	if len(toks) == 0 {
		return
	}
	if toks[0].name == "from" {
		for i, t := range toks {
			if t.name == "import" {
				bindImportNames(defined, toks[i+1:])
				break
			}
		}
		return
	}

	// import a.b.c as d, e
	for _, part := range splitTopLevel(code[toks[0].end:], ',') {
		names := identifiers(part)
		switch {
		case len(names) == 0:
		case len(names) >= 3 && names[len(names)-2].name == "as":
			defined[names[len(names)-1].name] = true
		default:
			defined[names[0].name] = true
		}
	}
}

// bindImportNames binds the names of a from-import list: "a, b as c".
func bindImportNames(defined map[string]bool, toks []ident) {
	for i := 0; i < len(toks); i++ {
		if i+2 < len(toks) && toks[i+1].name == "as" {
			defined[toks[i+2].name] = true
			i += 2
			continue
		}
		defined[toks[i].name] = true
	}
}

// bindDefinition records a function name and its parameter names.
func bindDefinition(defined map[string]bool, code string, toks []ident) {
	for i, t := range toks {
		if t.name == "def" && i+1 < len(toks) {
			defined[toks[i+1].name] = true
			break
		}
	}
	open := strings.IndexByte(code, '(')
	if open < 0 {
		return
	}
	closeAt := matchParen(code, open)
	if closeAt < 0 {
		closeAt = len(code)
	}
	bindParams(defined, code[open+1:closeAt])
}

// bindParams binds the leading name of every comma-separated parameter.
func bindParams(defined map[string]bool, segment string) {
	for _, param := range splitTopLevel(segment, ',') {
		param = strings.TrimLeft(param, " \t*")
		names := identifiers(param)
		if len(names) > 0 && names[0].start == 0 {
			defined[names[0].name] = true
		}
	}
}

// bindAssignments records the targets of every depth-0 assignment of a line,
// including chained and tuple targets.
func bindAssignments(defined map[string]bool, code string) {
	rest := code
	for {
		start, end := findAssignment(rest)
		if start < 0 {
			return
		}
		target := rest[:start]
		if colon := strings.IndexByte(target, ':'); colon >= 0 {
			target = target[:colon] // annotation
		}
		for _, t := range identifiers(target) {
			if t.depth == 0 && prevByte(target, t.start) != '.' {
				defined[t.name] = true
			}
		}
		rest = rest[end:]
	}
}

// bindKeywordTargets records names bound by for, as, global, nonlocal,
// lambda and the walrus operator.
func bindKeywordTargets(defined map[string]bool, code string, toks []ident) {
	for i := 0; i < len(toks); i++ {
		switch toks[i].name {
		case "for":
			for j := i + 1; j < len(toks) && toks[j].name != "in"; j++ {
				defined[toks[j].name] = true
			}
		case "as":
			if i+1 < len(toks) {
				defined[toks[i+1].name] = true
			}
		case "global", "nonlocal":
			for _, t := range toks[i+1:] {
				defined[t.name] = true
			}
		case "lambda":
			colon := strings.IndexByte(code[toks[i].end:], ':')
			if colon < 0 {
				continue
			}
			limit := toks[i].end + colon
			for j := i + 1; j < len(toks) && toks[j].start < limit; j++ {
				defined[toks[j].name] = true
			}
		}
		if strings.HasPrefix(nextBytes(code, toks[i].end), ":=") {
			defined[toks[i].name] = true
		}
	}
}

// ContextualRepairer synthesises missing imports and conservative stand-in
// assignments for names the document uses but never binds.
type ContextualRepairer struct {
	lang *Language
}

// NewContextualRepairer creates the contextual tier.
func NewContextualRepairer(lang *Language) *ContextualRepairer {
	return &ContextualRepairer{lang: lang}
}

// Name implements TextRepairStrategy.
func (r *ContextualRepairer) Name() string { return "contextual" }

// Repair implements TextRepairStrategy. Imports come first, then stand-ins,
// all inserted at the module import anchor.
func (r *ContextualRepairer) Repair(text string, _ *Diagnosis) (string, []Record, error) {
	ctx := BuildContext(r.lang, text)

	var added []string
	var recs []Record
	imported := map[string]bool{}
	for _, mod := range r.lang.CommonModules {
		line, used := ctx.ModuleUse[mod]
		if !used || ctx.Defined[mod] {
			continue
		}
		stmt := "import " + mod
		imported[mod] = true
		added = append(added, stmt)
		recs = append(recs, Record{Type: RecordMissingImport, Line: line, After: stmt, Name: mod})
	}
	for _, name := range ctx.Undefined {
		if imported[name] {
			continue
		}
		stmt := fmt.Sprintf("%s = %s", name, r.standIn(name))
		added = append(added, stmt)
		recs = append(recs, Record{Type: RecordUndefinedVariable, Line: ctx.FirstUse[name], After: stmt, Name: name})
	}
	if len(added) == 0 {
		return text, nil, nil
	}

	lines, cr := splitLines(text)
	at := r.anchor(lines)
	lines, cr = insertLines(lines, cr, at, added)
	logging.RepairDebug("contextual: inserted %d lines at line %d", len(added), at+1)
	return joinLines(lines, cr), recs, nil
}

func (r *ContextualRepairer) standIn(name string) string {
	switch {
	case hasAnyPrefix(name, r.lang.BoolPrefixes):
		return r.lang.FalseLiteral
	case hasAnySuffix(name, r.lang.SeqSuffixes):
		return r.lang.EmptySeqLiteral
	default:
		return r.lang.NullLiteral
	}
}

// anchor returns the line index new module-level statements go before: after
// leading comments, the module docstring and the top-level import block.
func (r *ContextualRepairer) anchor(lines []string) int {
	infos := scanLines(lines)
	at := 0
	i := 0
	skipBlank := func() {
		for i < len(lines) && isBlank(infos[i]) {
			if strings.TrimSpace(lines[i]) != "" {
				at = i + 1 // comment
			}
			i++
		}
	}

	skipBlank()
	if i < len(lines) && startsWithString(trimCode(infos[i].code)) {
		for i < len(lines) && infos[i].endsInString {
			i++
		}
		i++
		at = i
	}

	for {
		skipBlank()
		if i >= len(lines) || leadingWS(lines[i]) != "" || !r.lang.isImport(strings.TrimSpace(lines[i])) {
			return at
		}
		depth := 0
		for i < len(lines) {
			opens, closes := bracketDelta(infos[i].code, '(', ')')
			depth += opens - closes
			joined := strings.HasSuffix(strings.TrimRight(lines[i], " \t"), "\\")
			i++
			if depth <= 0 && !joined {
				break
			}
		}
		at = i
	}
}

// startsWithString reports whether a code mask begins with a string literal,
// optionally prefixed.
func startsWithString(code string) bool {
	for k := 0; k < len(code) && k < 3; k++ {
		switch c := code[k]; {
		case c == '"' || c == '\'':
			return true
		case !strings.ContainsRune("rRuUbBfF", rune(c)):
			return false
		}
	}
	return false
}
