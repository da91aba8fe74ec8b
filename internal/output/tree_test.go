package output

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

func plainProfile(t *testing.T) {
	t.Helper()
	old := profile
	profile = termenv.Ascii
	t.Cleanup(func() { profile = old })
}

func renderer(current string, children map[string][]string) *ForestRenderer {
	return NewForestRenderer(current, "main", func(name string) []string {
		return children[name]
	})
}

func TestRenderLinearStack(t *testing.T) {
	plainProfile(t)

	r := renderer("feature-b", map[string][]string{
		"main":      {"feature-a"},
		"feature-a": {"feature-b"},
	})

	lines := r.Render()
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "feature-b (current)")
	require.Contains(t, lines[0], "◉")
	require.Contains(t, lines[1], "feature-a")
	require.Contains(t, lines[2], "main")
}

func TestRenderForkedStack(t *testing.T) {
	plainProfile(t)

	r := renderer("main", map[string][]string{
		"main":      {"feature-a"},
		"feature-a": {"feature-b", "feature-c"},
	})

	lines := r.Render()
	require.Len(t, lines, 4)

	// Siblings fork into separate columns, parent below children.
	require.Contains(t, lines[0], "feature-b")
	require.Contains(t, lines[1], "│  ")
	require.Contains(t, lines[1], "feature-c")
	require.Contains(t, lines[2], "feature-a")
	require.Contains(t, lines[3], "◉")
	require.Contains(t, lines[3], "main (current)")
}

func TestRenderAnnotations(t *testing.T) {
	plainProfile(t)

	r := renderer("", map[string][]string{
		"main": {"feature-a"},
	})
	pr := 42
	r.SetAnnotation("feature-a", BranchAnnotation{
		PRNumber:  &pr,
		PRBase:    "develop",
		NeedsSync: true,
	})

	lines := r.Render()
	require.Contains(t, lines[0], "#42")
	require.Contains(t, lines[0], "(PR base: develop)")
	require.Contains(t, lines[0], "(needs sync)")
}
