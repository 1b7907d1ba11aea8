package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeSitterParser_Check(t *testing.T) {
	p := NewTreeSitterParser()

	t.Run("valid source", func(t *testing.T) {
		src := "import os\n\ndef f(x, y):\n    result = x + y\n    return result\n"
		assert.NoError(t, p.Check(src))
	})

	t.Run("unclosed bracket", func(t *testing.T) {
		err := p.Check("def f():\n    return (1 + 2\n")
		require.Error(t, err)
		_, ok := AsError(err)
		assert.True(t, ok)
	})

	t.Run("reusable after error", func(t *testing.T) {
		require.Error(t, p.Check("x = (1 +\n"))
		assert.NoError(t, p.Check("x = 1\n"))
	})
}

func TestTreeSitterParser_RejectsInvalidPython(t *testing.T) {
	inputs := []string{
		"1 = x\n",
		"f() = 1\n",
		"print(a if b)\n",
		"x = [i for i in]\n",
		"def f(x, x=1, y)\n",
		"x = {1: }\n",
		"x = 1 if y\n",
		"x = = 1\n",
		"foo(a b)\n",
	}
	p := NewTreeSitterParser()
	for _, in := range inputs {
		err := p.Check(in)
		require.Error(t, err, "input %q", in)
		_, ok := AsError(err)
		assert.True(t, ok, "input %q should be a syntax error, got %v", in, err)
	}
}

func TestTreeSitterParser_ParameterLists(t *testing.T) {
	p := NewTreeSitterParser()

	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"duplicate name", "def f(x, x=1):\n    pass\n", "duplicate argument 'x' in function definition"},
		{"duplicate splat", "def f(a, *a):\n    pass\n", "duplicate argument 'a' in function definition"},
		{"default ordering", "def f(a=1, b):\n    pass\n", "parameter without a default follows parameter with a default"},
		{"lambda duplicate", "g = lambda x, x: x\n", "duplicate argument 'x' in function definition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se, ok := AsError(p.Check(tt.src))
			require.True(t, ok)
			assert.Equal(t, tt.msg, se.Message)
			assert.Equal(t, 1, se.Line)
			assert.Equal(t, KindInvalidSyntax, se.Kind)
		})
	}

	valid := []string{
		"def f(a, b=1, *args, c, d=2, **kw):\n    pass\n",
		"def f(a: int, b: str = 'x') -> None:\n    pass\n",
		"def f(*, key=None, strict):\n    pass\n",
		"class A:\n    def m(self, x=1):\n        return lambda y, z=2: y + z\n",
	}
	for _, src := range valid {
		assert.NoError(t, p.Check(src), "input %q", src)
	}
}

func TestTreeSitterHelpers(t *testing.T) {
	assert.True(t, hasOpenQuote("x = 'hello"))
	assert.False(t, hasOpenQuote("x = 'hello'  # it's fine"))
	assert.True(t, balanced("f(a[1])"))
	assert.False(t, balanced("f(a[1]"))

	lines := []string{"def f():", "return 1"}
	assert.True(t, underIndented(lines, 1))
	lines = []string{"def f():", "    return 1"}
	assert.False(t, underIndented(lines, 1))
}
