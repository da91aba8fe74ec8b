// Package engine implements the stack topology and rebase orchestration
// core: the branch dependency model, the backup ledger, and the resumable
// plan/execute/continue/abort machinery shared by every mutating operation.
package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	rungerrors "github.com/auswm85/rung/internal/errors"
)

// Branch is one tracked branch in the stack
type Branch struct {
	// Name matches the git branch ref
	Name string `json:"name"`

	// Parent is the name of the branch this one builds on. Empty means
	// the branch sits directly on the base branch.
	Parent string `json:"parent,omitempty"`

	// Tip is the branch's commit SHA as last recorded
	Tip string `json:"tip,omitempty"`

	// LastKnownParentTip is the parent's tip recorded at the last
	// successful sync, used to detect drift
	LastKnownParentTip string `json:"lastKnownParentTip,omitempty"`

	// PR is the associated pull request number, if any
	PR *int `json:"pr,omitempty"`

	// Created is when the branch was added to the stack
	Created time.Time `json:"created,omitzero"`
}

// Stack is the branch dependency forest, ordered by insertion. The arena
// plus name index layout keeps traversal a bounded iteration even when the
// on-disk graph has been hand-edited into a cycle.
type Stack struct {
	branches []*Branch
	index    map[string]int
}

// NewStack creates an empty stack
func NewStack() *Stack {
	return &Stack{index: make(map[string]int)}
}

// stackFile is the persisted representation
type stackFile struct {
	Branches []*Branch `json:"branches"`
}

// MarshalJSON implements json.Marshaler
func (s *Stack) MarshalJSON() ([]byte, error) {
	branches := s.branches
	if branches == nil {
		branches = []*Branch{}
	}
	return json.Marshal(stackFile{Branches: branches})
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Stack) UnmarshalJSON(data []byte) error {
	var file stackFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}

	s.branches = nil
	s.index = make(map[string]int)
	for _, branch := range file.Branches {
		if branch == nil {
			return fmt.Errorf("null branch entry")
		}
		if branch.Name == "" {
			return fmt.Errorf("branch with empty name")
		}
		if _, exists := s.index[branch.Name]; exists {
			return fmt.Errorf("duplicate branch %q", branch.Name)
		}
		s.index[branch.Name] = len(s.branches)
		s.branches = append(s.branches, branch)
	}
	return nil
}

// Branch returns the branch with the given name, or nil
func (s *Stack) Branch(name string) *Branch {
	i, ok := s.index[name]
	if !ok {
		return nil
	}
	return s.branches[i]
}

// Contains reports whether a branch is tracked
func (s *Stack) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Branches returns all branches in insertion order
func (s *Stack) Branches() []*Branch {
	return s.branches
}

// Names returns all branch names in insertion order
func (s *Stack) Names() []string {
	names := make([]string, len(s.branches))
	for i, branch := range s.branches {
		names[i] = branch.Name
	}
	return names
}

// Len returns the number of tracked branches
func (s *Stack) Len() int {
	return len(s.branches)
}

// AddBranch adds a branch with the given parent. An empty parent means the
// base branch.
func (s *Stack) AddBranch(name, parent string) (*Branch, error) {
	if err := ValidateBranchName(name); err != nil {
		return nil, err
	}
	if s.Contains(name) {
		return nil, fmt.Errorf("%w: %s", rungerrors.ErrDuplicateBranch, name)
	}
	if parent != "" && !s.Contains(parent) {
		return nil, fmt.Errorf("%w: %s", rungerrors.ErrUnknownParent, parent)
	}

	branch := &Branch{
		Name:    name,
		Parent:  parent,
		Created: time.Now().UTC(),
	}
	s.index[name] = len(s.branches)
	s.branches = append(s.branches, branch)
	return branch, nil
}

// RemoveBranch removes a branch, reparenting its children onto the removed
// branch's parent
func (s *Stack) RemoveBranch(name string) error {
	i, ok := s.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", rungerrors.ErrNotInStack, name)
	}

	parent := s.branches[i].Parent
	for _, branch := range s.branches {
		if branch.Parent == name {
			branch.Parent = parent
		}
	}

	s.branches = append(s.branches[:i], s.branches[i+1:]...)
	delete(s.index, name)
	for j := i; j < len(s.branches); j++ {
		s.index[s.branches[j].Name] = j
	}
	return nil
}

// Reparent moves a branch onto a new parent. Fails with CyclicDependency
// when newParent is a descendant of name.
func (s *Stack) Reparent(name, newParent string) error {
	branch := s.Branch(name)
	if branch == nil {
		return fmt.Errorf("%w: %s", rungerrors.ErrNotInStack, name)
	}
	if newParent != "" && !s.Contains(newParent) {
		return fmt.Errorf("%w: %s", rungerrors.ErrUnknownParent, newParent)
	}
	if err := s.CheckReparent(name, newParent); err != nil {
		return err
	}

	branch.Parent = newParent
	return nil
}

// CheckReparent reports whether reparenting name onto newParent would
// create a cycle, without mutating the stack. The walk from newParent to
// the root is guarded against revisits so a corrupt graph terminates with
// an error instead of looping.
func (s *Stack) CheckReparent(name, newParent string) error {
	visited := make(map[string]bool)
	current := newParent
	for current != "" {
		if current == name {
			return &rungerrors.CycleError{Branch: name, NewParent: newParent}
		}
		if visited[current] {
			return fmt.Errorf("%w: cycle through %s", rungerrors.ErrCyclicDependency, current)
		}
		visited[current] = true

		parent := s.Branch(current)
		if parent == nil {
			break
		}
		current = parent.Parent
	}
	return nil
}

// ChildrenOf returns the direct children of a branch in insertion order.
// An empty name returns the roots (branches on the base branch).
func (s *Stack) ChildrenOf(name string) []string {
	var children []string
	for _, branch := range s.branches {
		if branch.Parent == name {
			children = append(children, branch.Name)
		}
	}
	return children
}

// AncestorChain returns the chain from the root to the named branch,
// ordered root first. A repeated visit means the graph is corrupt.
func (s *Stack) AncestorChain(name string) ([]string, error) {
	if !s.Contains(name) {
		return nil, fmt.Errorf("%w: %s", rungerrors.ErrNotInStack, name)
	}

	var chain []string
	visited := make(map[string]bool)
	current := name
	for current != "" {
		if visited[current] {
			return nil, fmt.Errorf("%w: cycle through %s", rungerrors.ErrCyclicDependency, current)
		}
		visited[current] = true
		chain = append(chain, current)

		branch := s.Branch(current)
		if branch == nil {
			break
		}
		current = branch.Parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Descendants returns every branch below name, parents before children,
// so the order is safe for dependency-ordered rewrites
func (s *Stack) Descendants(name string) []string {
	var result []string
	seen := map[string]bool{name: true}
	queue := s.ChildrenOf(name)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		result = append(result, current)
		queue = append(queue, s.ChildrenOf(current)...)
	}
	return result
}

// ValidateBranchName rejects names git itself would refuse as well as
// anything that could escape the ref namespace
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", rungerrors.ErrInvalidBranchName)
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("%w: %q", rungerrors.ErrInvalidBranchName, name)
	}
	if strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("%w: %q", rungerrors.ErrInvalidBranchName, name)
	}
	if strings.Contains(name, "..") || strings.Contains(name, "@{") || strings.Contains(name, "//") {
		return fmt.Errorf("%w: %q", rungerrors.ErrInvalidBranchName, name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: control character in %q", rungerrors.ErrInvalidBranchName, name)
		}
		switch r {
		case ' ', '~', '^', ':', '?', '*', '[', '\\':
			return fmt.Errorf("%w: %q", rungerrors.ErrInvalidBranchName, name)
		}
	}
	return nil
}
