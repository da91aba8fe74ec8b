package git

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Hunk represents a single hunk of staged changes
type Hunk struct {
	File     string // file path
	OldStart int    // line number in the old file (1-indexed)
	OldCount int    // number of lines in the old file (0 for pure inserts)
	NewStart int    // line number in the new file (1-indexed)
	NewCount int    // number of lines in the new file
	NewFile  bool   // true when the hunk comes from a newly added file
	Content  string // the raw diff content including the @@ header
}

// InsertOnly reports whether the hunk only adds lines without touching
// any existing ones
func (h Hunk) InsertOnly() bool {
	return h.OldCount == 0
}

// Patch renders a set of hunks as a patch that git apply accepts,
// grouping hunks under one file header per file
func Patch(hunks []Hunk) string {
	byFile := make(map[string][]Hunk)
	var order []string
	for _, hunk := range hunks {
		if _, seen := byFile[hunk.File]; !seen {
			order = append(order, hunk.File)
		}
		byFile[hunk.File] = append(byFile[hunk.File], hunk)
	}

	var b strings.Builder
	for _, file := range order {
		fmt.Fprintf(&b, "diff --git a/%s b/%s\n", file, file)
		fmt.Fprintf(&b, "--- a/%s\n", file)
		fmt.Fprintf(&b, "+++ b/%s\n", file)
		for _, hunk := range byFile[file] {
			b.WriteString(hunk.Content)
			if !strings.HasSuffix(hunk.Content, "\n") {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// StagedHunks parses the output of `git diff --cached` into structured hunks
func (a *adapter) StagedHunks(ctx context.Context) ([]Hunk, error) {
	diffOutput, err := a.runner.RunRaw(ctx, "diff", "--cached")
	if err != nil {
		return nil, fmt.Errorf("failed to get staged diff: %w", err)
	}
	return ParseHunks(diffOutput), nil
}

// hunkHeaderRegex matches headers like "@@ -10,5 +10,6 @@"
var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// ParseHunks splits a unified diff into per-hunk records
func ParseHunks(diffOutput string) []Hunk {
	if strings.TrimSpace(diffOutput) == "" {
		return []Hunk{}
	}

	var hunks []Hunk
	var currentHunk *Hunk
	var currentFile string
	var currentNewFile bool
	var hunkLines []string

	flush := func() {
		if currentHunk != nil {
			currentHunk.Content = strings.Join(hunkLines, "\n")
			hunks = append(hunks, *currentHunk)
			currentHunk = nil
			hunkLines = nil
		}
	}

	for _, line := range strings.Split(diffOutput, "\n") {
		line = strings.TrimRight(line, "\r")

		if strings.HasPrefix(line, "diff --git") {
			flush()
			// The paths on this line are ambiguous for names containing
			// spaces; the real path comes from the +++/--- lines below
			currentFile = ""
			currentNewFile = false
			continue
		}

		if currentHunk == nil {
			if strings.HasPrefix(line, "new file mode") {
				currentNewFile = true
				continue
			}
			if path, ok := diffPath(line, "+++ ", "b/"); ok {
				currentFile = path
				continue
			}
			if path, ok := diffPath(line, "--- ", "a/"); ok {
				// Deletions have "+++ /dev/null", so the old side is
				// the only usable path
				if currentFile == "" {
					currentFile = path
				}
				continue
			}
		}

		if match := hunkHeaderRegex.FindStringSubmatch(line); match != nil {
			flush()

			oldCount := 1
			if match[2] != "" {
				oldCount = parseCount(match[2])
			}
			newCount := 1
			if match[4] != "" {
				newCount = parseCount(match[4])
			}

			currentHunk = &Hunk{
				File:     currentFile,
				OldStart: parseCount(match[1]),
				OldCount: oldCount,
				NewStart: parseCount(match[3]),
				NewCount: newCount,
				NewFile:  currentNewFile,
			}
			hunkLines = []string{line}
			continue
		}

		if currentHunk != nil {
			hunkLines = append(hunkLines, line)
		}
	}
	flush()

	return hunks
}

// diffPath extracts the path from a "--- a/..." or "+++ b/..." header
// line. Handles quoted paths and tolerates spaces in unquoted ones,
// which the trailing token of the "diff --git" line does not.
func diffPath(line, marker, side string) (string, bool) {
	rest, ok := strings.CutPrefix(line, marker)
	if !ok {
		return "", false
	}
	rest = strings.TrimSuffix(rest, "\t")
	if strings.HasPrefix(rest, `"`) {
		unquoted, err := strconv.Unquote(rest)
		if err != nil {
			return "", false
		}
		rest = unquoted
	}
	path, ok := strings.CutPrefix(rest, side)
	if !ok || path == "" {
		return "", false
	}
	return path, true
}

func parseCount(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
