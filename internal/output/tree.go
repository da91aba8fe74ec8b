package output

import (
	"strings"
)

// BranchAnnotation holds per-branch display metadata
type BranchAnnotation struct {
	PRNumber  *int
	PRBase    string // PR base branch when it drifted from the tracked parent
	NeedsSync bool
	Label     string // additional text appended after the branch name
}

// ForestRenderer renders the tracked branch forest as an indented tree,
// children above parents so the trunk sits at the bottom.
type ForestRenderer struct {
	currentBranch string
	baseBranch    string
	getChildren   func(branchName string) []string
	annotations   map[string]BranchAnnotation
}

// NewForestRenderer creates a renderer over the branch topology exposed
// by the getChildren callback
func NewForestRenderer(currentBranch, baseBranch string, getChildren func(branchName string) []string) *ForestRenderer {
	return &ForestRenderer{
		currentBranch: currentBranch,
		baseBranch:    baseBranch,
		getChildren:   getChildren,
		annotations:   make(map[string]BranchAnnotation),
	}
}

// SetAnnotation sets the annotation for a branch
func (r *ForestRenderer) SetAnnotation(branchName string, annotation BranchAnnotation) {
	r.annotations[branchName] = annotation
}

// Render returns the rendered lines for the whole forest
func (r *ForestRenderer) Render() []string {
	lines := r.renderSubtree(r.baseBranch, 0)
	lines = append(lines, r.branchLine(r.baseBranch, 0))
	return lines
}

// renderSubtree renders the descendants of a branch, deepest first
func (r *ForestRenderer) renderSubtree(branchName string, indent int) []string {
	children := r.getChildren(branchName)

	var result []string
	for i, child := range children {
		childIndent := indent + i
		result = append(result, r.renderSubtree(child, childIndent)...)
		result = append(result, r.branchLine(child, childIndent))
	}
	return result
}

func (r *ForestRenderer) branchLine(branchName string, indent int) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("│  ", indent))

	isCurrent := branchName == r.currentBranch
	if isCurrent {
		b.WriteString("◉ ")
	} else {
		b.WriteString("◯ ")
	}

	b.WriteString(ColorBranchName(branchName, isCurrent))

	annotation := r.annotations[branchName]
	if annotation.PRNumber != nil {
		b.WriteString(" " + ColorPRNumber(*annotation.PRNumber))
	}
	if annotation.PRBase != "" {
		b.WriteString(" " + ColorDim("(PR base: "+annotation.PRBase+")"))
	}
	if annotation.NeedsSync {
		b.WriteString(" " + ColorNeedsSync("(needs sync)"))
	}
	if annotation.Label != "" {
		b.WriteString(" " + ColorDim(annotation.Label))
	}

	return b.String()
}
