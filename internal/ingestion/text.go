package ingestion

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	blankLineRun  = regexp.MustCompile(`\n\n\n+`)
)

// bulletMarkers are rewritten to "- " so downstream prompts see one list style.
var bulletMarkers = []string{"- ", "* ", "• ", "· ", "▪ ", "– "}

// CleanText normalizes extracted document text while keeping its line structure.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.ReplaceAll(content, "\u00a0", " ")
	content = strings.ReplaceAll(content, "\f", "\n")

	lines := strings.Split(content, "\n")
	cleanedLines := make([]string, 0, len(lines))
	for _, line := range lines {
		cleanedLines = append(cleanedLines, cleanLine(line))
	}

	result := blankLineRun.ReplaceAllString(strings.Join(cleanedLines, "\n"), "\n\n")
	return strings.TrimSpace(result)
}

// cleanLine collapses inner whitespace and trims the line. Headings keep their
// marker and bullets are normalized to "- ", both with indentation kept.
func cleanLine(line string) string {
	line = strings.TrimRight(line, " \t")
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return ""
	}
	indent := strings.Repeat(" ", len(line)-len(trimmed))

	if strings.HasPrefix(trimmed, "#") {
		return trimmed
	}
	if marker, ok := bulletMarker(trimmed); ok {
		item := whitespaceRun.ReplaceAllString(strings.TrimSpace(strings.TrimPrefix(trimmed, marker)), " ")
		return indent + "- " + item
	}
	return indent + whitespaceRun.ReplaceAllString(trimmed, " ")
}

func bulletMarker(trimmed string) (string, bool) {
	for _, m := range bulletMarkers {
		if strings.HasPrefix(trimmed, m) {
			return m, true
		}
	}
	return "", false
}
