package output

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

var profile = detectProfile()

func detectProfile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

func colorize(text string, color string) string {
	return termenv.String(text).Foreground(profile.Color(color)).String()
}

// ColorBranchName colors a branch name based on whether it's current
func ColorBranchName(branchName string, isCurrent bool) string {
	if isCurrent {
		return colorize(branchName+" (current)", "6")
	}
	return colorize(branchName, "12")
}

// ColorNeedsSync colors the "needs sync" marker
func ColorNeedsSync(text string) string {
	return colorize(text, "3")
}

// ColorDim makes text dim/gray
func ColorDim(text string) string {
	return colorize(text, "8")
}

// ColorRed colors text red
func ColorRed(text string) string {
	return colorize(text, "1")
}

// ColorGreen colors text green
func ColorGreen(text string) string {
	return colorize(text, "2")
}

// ColorPRNumber formats and colors a pull request number
func ColorPRNumber(prNumber int) string {
	return colorize(fmt.Sprintf("#%d", prNumber), "5")
}
