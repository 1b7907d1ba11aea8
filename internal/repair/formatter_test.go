package repair

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestFormatter_BodyIndentationAndSpacing(t *testing.T) {
	f := NewFormatter(Python())
	out, recs := f.Format("def f( x,y ):\nresult=x+y\nreturn result")

	assert.Equal(t, "def f(x, y):\n    result = x + y\n    return result", out)

	want := []Record{
		{Type: RecordBasicSpacing, Line: 1, Before: "def f( x,y ):", After: "def f(x, y):"},
		{Type: RecordBasicIndentation, Line: 2, Before: "result=x+y", After: "    result=x+y"},
		{Type: RecordBasicSpacing, Line: 2, Before: "    result=x+y", After: "    result = x + y"},
		{Type: RecordBasicIndentation, Line: 3, Before: "return result", After: "    return result"},
	}
	if diff := cmp.Diff(want, recs); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatter_Rules(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing whitespace", "x = 1   \ny = 2\t\n", "x = 1\ny = 2\n"},
		{"assignment spacing", "y  =  2", "y = 2"},
		{"augmented assignment", "n+=1", "n += 1"},
		{"comparison untouched", "ok = a==b", "ok = a==b"},
		{"arithmetic", "z = a*b-c/d", "z = a * b - c / d"},
		{"unary minus after keyword", "def f():\n    return -1", "def f():\n    return -1"},
		{"exponent literal", "eps = 1e-5", "eps = 1e-5"},
		{"power and floor division", "p = a**2 // b", "p = a**2 // b"},
		{"paren padding", "print( x )", "print(x)"},
		{"nested bodies", "class A( object ):\ndef m(self):\npass", "class A(object):\n    def m(self):\n        pass"},
		{"excess close paren on def", "def f(a)):\n    pass", "def f(a):\n    pass"},
		{"empty params kept", "def f(a,,b):\n    pass", "def f(a, , b):\n    pass"},
		{"trailing comma kept", "def f(a,b,):\n    pass", "def f(a, b,):\n    pass"},
		{"lone comma kept", "def f(,):\n    pass", "def f(,):\n    pass"},
		{"blank line stops carry", "def f():\nx = 1\n\ny = 2", "def f():\n    x = 1\n\ny = 2"},
		{"decorator stops carry", "class A:\nx = 1\n@dec\ndef g():\n    pass", "class A:\n    x = 1\n@dec\ndef g():\n    pass"},
		{"strings untouched", "s = 'a=b+c'", "s = 'a=b+c'"},
		{"comment keeps spacing", "x = 1  # a=b", "x = 1  # a=b"},
		{"crlf preserved", "x=1\r\ny=2\r\n", "x = 1\r\ny = 2\r\n"},
	}
	f := NewFormatter(Python())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := f.Format(tt.in)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestFormatter_SkipsMultilineStrings(t *testing.T) {
	in := "s = \"\"\"\n  keep   \nthis=as+is\n\"\"\"\n"
	out, recs := NewFormatter(Python()).Format(in)
	assert.Equal(t, in, out)
	assert.Empty(t, recs)
}

func TestFormatter_Idempotent(t *testing.T) {
	inputs := []string{
		"def f( x,y ):\nresult=x+y\nreturn result",
		"x=1\ny  =  2   \n",
		"class A( object ):\ndef m(self):\npass",
		"def f():\n    return (1 + 2",
		"x = 'hello",
		"import os\n\n\ndef add(a, b):\n    total = a + b\n    return total\n",
		"s = \"\"\"\n  keep   \n\"\"\"\n",
		"def f(a,,b,):\n    pass",
		"result = foo(\n    a=1,\n    b=2,\n)\n",
	}
	f := NewFormatter(Python())
	for _, in := range inputs {
		once, _ := f.Format(in)
		twice, recs := f.Format(once)
		assert.Equal(t, once, twice, "input %q", in)
		assert.Empty(t, recs, "second pass should not change %q", once)
	}
}

func TestFormatter_CustomIndentUnit(t *testing.T) {
	f := NewFormatter(Python().WithIndentUnit("\t"))
	out, _ := f.Format("if x:\ny = 1")
	assert.Equal(t, "if x:\n\ty = 1", out)
}

func TestFormatter_ContinuationLinesKeepKeywordArguments(t *testing.T) {
	inputs := []string{
		"result = foo(\n    a=1,\n    b=2,\n)\n",
		"def f(\n    a=1,\n    b=None,\n):\n    return a\n",
		"opts = dict(\n    key=value,\n    other=[1,\n           2],\n)\n",
		"call(x,\nflag=True)\n",
	}
	f := NewFormatter(Python())
	for _, in := range inputs {
		out, recs := f.Format(in)
		assert.Equal(t, in, out)
		assert.Empty(t, recs, "input %q", in)
	}
}

func TestFormatter_BodyAfterMultilineSignature(t *testing.T) {
	out, _ := NewFormatter(Python()).Format("def f(\n    a=1,\n):\nreturn a")
	assert.Equal(t, "def f(\n    a=1,\n):\n    return a", out)
}

func TestFormatter_DictValueLineIsNotABlockOpener(t *testing.T) {
	in := "d = {\n    'a':\n1}\nx = 2"
	out, _ := NewFormatter(Python()).Format(in)
	assert.Equal(t, in, out)
}
