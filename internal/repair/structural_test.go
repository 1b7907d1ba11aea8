package repair

import (
	"strings"
	"testing"

	"codemend/internal/syntax"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStructural() *StructuralRepairer {
	return NewStructuralRepairer(Python(), syntax.NewPythonChecker())
}

// isSubsequence reports whether every byte of a appears in b in order.
func isSubsequence(a, b string) bool {
	j := 0
	for i := 0; i < len(b) && j < len(a); i++ {
		if a[j] == b[i] {
			j++
		}
	}
	return j == len(a)
}

func TestStructural_Brackets(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		recs []Record
	}{
		{
			name: "single paren at end",
			in:   "def f():\n    return (1 + 2",
			want: "def f():\n    return (1 + 2)",
			recs: []Record{{Type: RecordMissingParentheses, Line: 2, Before: "    return (1 + 2", After: "    return (1 + 2)", Count: 1}},
		},
		{
			name: "mixed kinds innermost first",
			in:   "x = foo([1, {2: (3",
			want: "x = foo([1, {2: (3)}])",
			recs: []Record{
				{Type: RecordMissingParentheses, Line: 1, Before: "x = foo([1, {2: (3", After: "x = foo([1, {2: (3)}])", Count: 2},
				{Type: RecordMissingBraces, Line: 1, Before: "x = foo([1, {2: (3", After: "x = foo([1, {2: (3)}])", Count: 1},
				{Type: RecordMissingBrackets, Line: 1, Before: "x = foo([1, {2: (3", After: "x = foo([1, {2: (3)}])", Count: 1},
			},
		},
		{
			name: "closer goes before trailing comment",
			in:   "x = (1 + 2  # sum",
			want: "x = (1 + 2)  # sum",
			recs: []Record{{Type: RecordMissingParentheses, Line: 1, Before: "x = (1 + 2  # sum", After: "x = (1 + 2)  # sum", Count: 1}},
		},
		{
			name: "trailing blank lines skipped",
			in:   "items = [1,\n    2,\n\n",
			want: "items = [1,\n    2,]\n\n",
			recs: []Record{{Type: RecordMissingBrackets, Line: 2, Before: "    2,", After: "    2,]", Count: 1}},
		},
		{
			name: "brackets inside strings ignored",
			in:   "s = '(' + str(x",
			want: "s = '(' + str(x)",
			recs: []Record{{Type: RecordMissingParentheses, Line: 1, Before: "s = '(' + str(x", After: "s = '(' + str(x)", Count: 1}},
		},
	}

	r := newStructural()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Diagnosis{Line: 1, Class: ClassBracketBalance}
			out, recs, err := r.Repair(tt.in, d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			if diff := cmp.Diff(tt.recs, recs); diff != "" {
				t.Errorf("records mismatch (-want +got):\n%s", diff)
			}
			assert.True(t, isSubsequence(tt.in, out), "repair must only append")
			assert.NoError(t, syntax.NewPythonChecker().Check(out))
		})
	}
}

func TestStructural_BracketBalanceProperty(t *testing.T) {
	inputs := []string{
		"f(g(h(1",
		"d = {'a': [1, 2",
		"x = [(1, 2), (3",
		"call(a,\n     b,\n     [c",
	}
	r := newStructural()
	for _, in := range inputs {
		out, _, err := r.Repair(in, &Diagnosis{Line: 1, Class: ClassBracketBalance})
		require.NoError(t, err)
		for _, k := range bracketKinds {
			var opens, closes int
			for _, info := range scanLines(strings.Split(out, "\n")) {
				o, c := bracketDelta(info.code, k.open, k.close)
				opens += o
				closes += c
			}
			assert.Equal(t, opens, closes, "%q: %c unbalanced in %q", in, k.open, out)
		}
	}
}

func TestStructural_PerLineParenFallback(t *testing.T) {
	text, recs := balanceLines("a = f(1\nb = g(h(2)\nc = 3")
	assert.Equal(t, "a = f(1)\nb = g(h(2))\nc = 3", text)
	want := []Record{
		{Type: RecordLineParentheses, Line: 1, Before: "a = f(1", After: "a = f(1)", Count: 1},
		{Type: RecordLineParentheses, Line: 2, Before: "b = g(h(2)", After: "b = g(h(2))", Count: 1},
	}
	if diff := cmp.Diff(want, recs); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestStructural_Quotes(t *testing.T) {
	r := newStructural()

	out, recs, err := r.Repair("x = 'hello", &Diagnosis{Line: 1, Class: ClassStringIssue})
	require.NoError(t, err)
	assert.Equal(t, "x = 'hello'", out)
	require.Len(t, recs, 1)
	assert.Equal(t, RecordMissingSingleQuote, recs[0].Type)
	assert.Equal(t, 1, recs[0].Line)

	out, recs, err = r.Repair("a = 1\nb = \"oops\nc = 2\n", &Diagnosis{Line: 2, Class: ClassStringIssue})
	require.NoError(t, err)
	assert.Equal(t, "a = 1\nb = \"oops\"\nc = 2\n", out)
	require.Len(t, recs, 1)
	assert.Equal(t, RecordMissingDoubleQuote, recs[0].Type)
	assert.Equal(t, 2, recs[0].Line)
}

func TestStructural_Indentation(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		line      int
		want      string
		oldIndent int
		newIndent int
	}{
		{"after block opener", "def f():\nreturn 1", 2, "def f():\n    return 1", 0, 4},
		{"unexpected indent", "x = 1\n    y = 2\n", 2, "x = 1\ny = 2\n", 4, 0},
		{"bad dedent", "def f():\n    x = 1\n  y = 2\n", 3, "def f():\n    x = 1\ny = 2\n", 2, 0},
		{"first line", "  x = 1\n", 1, "x = 1\n", 2, 0},
	}
	r := newStructural()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, recs, err := r.Repair(tt.in, &Diagnosis{Line: tt.line, Class: ClassIndentation})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			require.Len(t, recs, 1)
			assert.Equal(t, RecordIndentationFix, recs[0].Type)
			assert.Equal(t, tt.line, recs[0].Line)
			assert.Equal(t, tt.oldIndent, recs[0].OldIndent)
			assert.Equal(t, tt.newIndent, recs[0].NewIndent)
		})
	}
}

func TestStructural_NilDiagnosisIsNoop(t *testing.T) {
	out, recs, err := newStructural().Repair("x = (", nil)
	require.NoError(t, err)
	assert.Equal(t, "x = (", out)
	assert.Empty(t, recs)
}

func TestStructural_UnknownClassTriesBracketsThenQuotes(t *testing.T) {
	out, recs, err := newStructural().Repair("x = 'abc\ny = (1", &Diagnosis{Line: 1, Class: ClassUnknown})
	require.NoError(t, err)
	assert.Equal(t, "x = 'abc'\ny = (1)", out)
	types := make([]RecordType, len(recs))
	for i, rec := range recs {
		types[i] = rec.Type
	}
	assert.Contains(t, types, RecordMissingParentheses)
	assert.Contains(t, types, RecordMissingSingleQuote)
}
