// Package output implements the Output Pipeline: it decides whether a
// completed prompt's output ships inline or as a truncated preview plus an
// HTML artifact, and schedules per-destination flushes so concurrent
// sessions never interleave one another's chunks.
package output

import (
	"fmt"
	"unicode/utf8"

	"github.com/LKosoj/sessionctl/internal/ansi"
	"github.com/LKosoj/sessionctl/internal/vterm"
)

// truncationMarker separates the head and tail halves of a preview,
// grounded on original_source/utils.py's build_preview truncation suffix
// (there a single trailing marker; here a head/tail join since the
// preview keeps both ends of the output).
const truncationMarker = "\n...(truncated)...\n"

// Decision is what the pipeline decided to do with one prompt's output.
type Decision struct {
	// Inline is true when the full plain-text output fits within the
	// configured limit and should be sent as-is.
	Inline bool
	// Text is the content to send: the full output when Inline, or the
	// head/tail preview otherwise.
	Text string
	// ArtifactHTML is the ANSI-to-HTML rendering of the full output,
	// populated only when !Inline.
	ArtifactHTML string
}

// Decide implements the size decision: plain character count at most
// inlineLimit ships inline; otherwise a head/tail preview is built and an
// HTML artifact is produced from the original ANSI-decorated text.
// Counting runs in characters, not bytes, so multibyte output can't split
// a rune at the inlineLimit boundary.
func Decide(rawANSI string, cols, inlineLimit, headChars, tailChars int) Decision {
	plain := vterm.Strip(rawANSI, cols)
	if utf8.RuneCountInString(plain) <= inlineLimit {
		return Decision{Inline: true, Text: plain}
	}
	return Decision{
		Inline:       false,
		Text:         buildPreview(plain, headChars, tailChars),
		ArtifactHTML: ansi.ToHTML(rawANSI),
	}
}

// buildPreview returns the first headChars and last tailChars of plain
// joined by a truncation marker, biased toward the tail because trailing
// content typically carries the final answer. Slicing by rune keeps the
// cut points on character boundaries.
func buildPreview(plain string, headChars, tailChars int) string {
	runes := []rune(plain)
	n := len(runes)
	if headChars+tailChars >= n {
		return plain
	}
	head := string(runes[:headChars])
	tail := string(runes[n-tailChars:])
	return head + truncationMarker + tail
}

// ArtifactFilename returns a deterministic-looking, collision-resistant
// filename for an HTML artifact belonging to session sessionID, matching
// the convention of a prefixed temp file
// (original_source/utils.py's make_html_file uses tempfile.mkstemp with a
// prefix; the actual file is written by WriteArtifact in artifact.go).
func ArtifactFilename(sessionID string, seq int) string {
	return fmt.Sprintf("%s-%04d.html", sessionID, seq)
}
