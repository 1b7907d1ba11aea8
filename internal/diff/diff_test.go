package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int, replace map[int]string) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		if r, ok := replace[i]; ok {
			sb.WriteString(r)
		} else {
			sb.WriteString("l" + string(rune('0'+i%10)))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestUnified_SingleReplacement(t *testing.T) {
	got := Unified("f.py", "a\nb\nc\n", "a\nB\nc\n")
	want := "--- a/f.py\n+++ b/f.py\n@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n"
	assert.Equal(t, want, got)
}

func TestUnified_InsertedImport(t *testing.T) {
	got := Unified("f.py", "x = 1\n", "import os\nx = 1\n")
	want := "--- a/f.py\n+++ b/f.py\n@@ -1 +1,2 @@\n+import os\n x = 1\n"
	assert.Equal(t, want, got)
}

func TestUnified_Identical(t *testing.T) {
	assert.Empty(t, Unified("f.py", "x = 1\n", "x = 1\n"))

	fd := NewEngine(DefaultContext).Compute("f.py", "same", "same")
	assert.True(t, fd.Empty())
	added, removed := fd.Stat()
	assert.Zero(t, added)
	assert.Zero(t, removed)
}

func TestCompute_SeparateHunks(t *testing.T) {
	old := numbered(10, nil)
	changed := numbered(10, map[int]string{2: "X", 9: "Y"})

	fd := NewEngine(1).Compute("f.py", old, changed)
	require.Len(t, fd.Hunks, 2)

	assert.Equal(t, 1, fd.Hunks[0].OldStart)
	assert.Equal(t, 3, fd.Hunks[0].OldCount)
	assert.Equal(t, 8, fd.Hunks[1].OldStart)
	assert.Equal(t, 8, fd.Hunks[1].NewStart)
	assert.Equal(t, 3, fd.Hunks[1].NewCount)

	added, removed := fd.Stat()
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, removed)
}

func TestCompute_NearbyChangesMerge(t *testing.T) {
	old := numbered(10, nil)
	changed := numbered(10, map[int]string{2: "X", 9: "Y"})

	fd := NewEngine(DefaultContext).Compute("f.py", old, changed)
	require.Len(t, fd.Hunks, 1)
	assert.Equal(t, 10, fd.Hunks[0].OldCount)
	assert.Equal(t, 10, fd.Hunks[0].NewCount)
}

func TestCompute_DeletionOnly(t *testing.T) {
	fd := NewEngine(0).Compute("f.py", "a\nb\nc\n", "a\nc\n")
	require.Len(t, fd.Hunks, 1)
	h := fd.Hunks[0]
	assert.Equal(t, []Line{{Content: "b", Type: LineRemoved}}, h.Lines)
	assert.Equal(t, "--- a/f.py\n+++ b/f.py\n@@ -2 +1,0 @@\n-b\n", fd.Unified())
}

func TestCompute_FromEmpty(t *testing.T) {
	fd := NewEngine(DefaultContext).Compute("new.py", "", "x = 1\n")
	require.Len(t, fd.Hunks, 1)
	assert.Equal(t, 0, fd.Hunks[0].OldStart)
	assert.Equal(t, 0, fd.Hunks[0].OldCount)
	assert.Contains(t, fd.Unified(), "@@ -0,0 +1 @@\n+x = 1\n")
}
