package ansi

import (
	"html"
	"regexp"
	"strings"
)

// fgColors maps SGR foreground codes to the color swatch used when
// rendering an output artifact, grounded on original_source/utils.py's
// _ANSI_FG_COLORS table.
var fgColors = map[int]string{
	30: "#000000", 31: "#cc0000", 32: "#00aa00", 33: "#aa8800",
	34: "#0000cc", 35: "#aa00aa", 36: "#00aaaa", 37: "#cccccc",
	90: "#555555", 91: "#ff4444", 92: "#44ff44", 93: "#ffff44",
	94: "#4444ff", 95: "#ff44ff", 96: "#44ffff", 97: "#ffffff",
}

var sgrPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// ToHTML converts ANSI-decorated text into a standalone HTML document with
// SGR-styled inline spans, grounded on original_source/utils.py's
// ansi_to_html / _apply_ansi_to_html / _wrap_html pipeline. Markdown and
// mermaid-diagram rendering from the Python original are intentionally not
// ported: both depend on an external network service or a markdown engine
// with no grounded Go-ecosystem equivalent in this ecosystem's example set.
func ToHTML(text string) string {
	return wrapDocument(toSpans(text))
}

func toSpans(text string) string {
	var out strings.Builder
	var fgColor string
	bold := false
	openSpan := false

	closeSpan := func() {
		if openSpan {
			out.WriteString("</span>")
			openSpan = false
		}
	}
	openSpanIfStyled := func() {
		closeSpan()
		var styles []string
		if fgColor != "" {
			styles = append(styles, "color:"+fgColor)
		}
		if bold {
			styles = append(styles, "font-weight:600")
		}
		if len(styles) == 0 {
			return
		}
		out.WriteString(`<span style="`)
		out.WriteString(strings.Join(styles, ";"))
		out.WriteString(`">`)
		openSpan = true
	}

	idx := 0
	for _, loc := range sgrPattern.FindAllStringIndex(text, -1) {
		if loc[0] > idx {
			out.WriteString(html.EscapeString(text[idx:loc[0]]))
		}
		codes := text[loc[0]+2 : loc[1]-1]
		if codes == "" {
			codes = "0"
		}
		for _, codeStr := range strings.Split(codes, ";") {
			applyCode(codeStr, &fgColor, &bold)
		}
		openSpanIfStyled()
		idx = loc[1]
	}
	if idx < len(text) {
		out.WriteString(html.EscapeString(text[idx:]))
	}
	closeSpan()
	return out.String()
}

func applyCode(codeStr string, fgColor *string, bold *bool) {
	code := 0
	for _, r := range codeStr {
		if r < '0' || r > '9' {
			return
		}
		code = code*10 + int(r-'0')
	}
	switch {
	case codeStr == "":
		return
	case code == 0:
		*fgColor = ""
		*bold = false
	case code == 1:
		*bold = true
	case code == 22:
		*bold = false
	case code == 39:
		*fgColor = ""
	default:
		if c, ok := fgColors[code]; ok {
			*fgColor = c
		}
	}
}

func wrapDocument(body string) string {
	var b strings.Builder
	b.WriteString("<!doctype html>\n<html><head><meta charset=\"utf-8\">")
	b.WriteString("<style>")
	b.WriteString("body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif;")
	b.WriteString("line-height:1.5;color:#111;background:#fff;padding:16px;white-space:pre-wrap;}")
	b.WriteString("</style></head><body>")
	b.WriteString(body)
	b.WriteString("</body></html>")
	return b.String()
}
