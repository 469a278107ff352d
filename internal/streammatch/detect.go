package streammatch

import (
	"regexp"
	"strings"

	"github.com/LKosoj/sessionctl/internal/vterm"
)

// resumeCandidates are tried in order against the clean view; the first
// one that matches wins. Ported from original_source/utils.py's
// detect_resume_regex, which tries JSON-ish session identifiers before
// falling back to a loose "resume id: X" phrase.
var resumeCandidates = []*regexp.Regexp{
	regexp.MustCompile(`"thread_id"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"conversation_id"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`"session_id"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`resume\s*id\s*[:=]\s*([A-Za-z0-9_-]+)`),
}

// DetectResumeRegex scans text for a known resume-token shape and, if one
// matches, returns the regex source that would re-extract it from future
// output of the same tool. It does not return the token itself: callers
// persist the *pattern* as the tool's learned resume regex.
func DetectResumeRegex(text string) (pattern string, ok bool) {
	clean := vterm.Strip(text, 200)
	for _, re := range resumeCandidates {
		if re.MatchString(clean) {
			return re.String(), true
		}
	}
	return "", false
}

// maxPromptLineLen bounds how long a candidate prompt line may be; an
// 80-character ceiling filters out wrapped paragraph text that happens to
// repeat, keeping the heuristic aimed at short interactive prompts like
// "> " or "codex>".
const maxPromptLineLen = 80

// promptTailWindow is how many of the most recent non-empty lines are
// considered when looking for a repeating prompt line.
const promptTailWindow = 6

// DetectPromptRegex looks at the tail of lines for a short line that
// repeats at least twice, treating repetition as evidence the tool is
// redrawing its own prompt rather than printing one-off output. Ported
// from original_source/utils.py's detect_prompt_regex.
func DetectPromptRegex(lines []string) (pattern string, ok bool) {
	var cleaned []string
	for _, line := range lines {
		c := strings.TrimRight(vterm.Strip(line, 200), "\n")
		if strings.TrimSpace(c) != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) == 0 {
		return "", false
	}

	start := 0
	if len(cleaned) > promptTailWindow {
		start = len(cleaned) - promptTailWindow
	}
	tail := cleaned[start:]
	candidate := tail[len(tail)-1]
	if len(candidate) > maxPromptLineLen {
		return "", false
	}

	occurrences := 0
	for _, line := range tail {
		if line == candidate {
			occurrences++
		}
	}
	if occurrences >= 2 {
		return regexp.QuoteMeta(candidate) + `\s*$`, true
	}
	return "", false
}
