// Package format rewrites Markdown-flavored assistant replies into plain
// text suitable for WhatsApp, which has no Markdown renderer of its own.
// Console replies are passed through untouched.
package format

import (
	"regexp"
	"strings"
)

var (
	headingRe         = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.+?)\s*#*\s*$`)
	hruleRe           = regexp.MustCompile(`^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
	markdownListRe    = regexp.MustCompile(`^\s*[-+*]\s+(.*)$`)
	unicodeListRe     = regexp.MustCompile(`^\s*[•●◦○▪▫‣⁃∙]+\s*(.*)$`)
	strongStarsRe     = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	strongUnderlineRe = regexp.MustCompile(`__([^_\n]+)__`)
	linkRe            = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\s]+)\)`)
	codeFenceRe       = regexp.MustCompile("^\\s*```")
)

var zeroWidthReplacer = strings.NewReplacer(
	"​", "",
	"‌", "",
	"‍", "",
	"⁠", "",
	"\xef\xbb\xbf", "",
)

func normalizeListLine(line string) string {
	if m := markdownListRe.FindStringSubmatch(line); m != nil {
		if strings.TrimSpace(m[1]) == "" {
			return "-"
		}
		return "- " + m[1]
	}
	if m := unicodeListRe.FindStringSubmatch(line); m != nil {
		if strings.TrimSpace(m[1]) == "" {
			return "-"
		}
		return "- " + m[1]
	}
	return line
}

func normalizeInline(line string) string {
	line = linkRe.ReplaceAllString(line, "$1 ($2)")
	line = strongStarsRe.ReplaceAllString(line, "*$1*")
	line = strongUnderlineRe.ReplaceAllString(line, "*$1*")
	return line
}

func collapseBlankLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		isBlank := strings.TrimSpace(l) == ""
		if isBlank {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	// trim leading/trailing blank lines
	for len(out) > 0 && strings.TrimSpace(out[0]) == "" {
		out = out[1:]
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out
}

// WhatsApp rewrites Markdown-ish text into WhatsApp's own formatting
// dialect: headings become *bold*, bullet markers are normalized to "- ",
// hrules collapse to a blank line, links become "text (url)", bold
// markers collapse to a single asterisk pair, fenced code blocks are
// passed through untouched, zero-width characters are stripped, and runs
// of blank lines are collapsed to one.
func WhatsApp(text string) string {
	text = zeroWidthReplacer.Replace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	rawLines := strings.Split(text, "\n")
	lines := make([]string, 0, len(rawLines))
	inCodeBlock := false

	for _, line := range rawLines {
		if codeFenceRe.MatchString(line) {
			inCodeBlock = !inCodeBlock
			lines = append(lines, line)
			continue
		}
		if inCodeBlock {
			lines = append(lines, line)
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			if strings.TrimSpace(m[1]) == "" {
				lines = append(lines, "")
				continue
			}
			lines = append(lines, "*"+strings.TrimSpace(m[1])+"*")
			continue
		}
		if hruleRe.MatchString(line) {
			lines = append(lines, "")
			continue
		}
		line = normalizeListLine(line)
		line = normalizeInline(line)
		lines = append(lines, strings.TrimRight(line, " \t"))
	}

	lines = collapseBlankLines(lines)
	return strings.Join(lines, "\n")
}
