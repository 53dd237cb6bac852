// Package sentinel patches and extracts marker-delimited text blocks inside
// host documents. Only the region between a BEGIN/END marker pair is owned
// by clasp; every byte outside the pair is preserved exactly.
package sentinel

import (
	"fmt"
	"strings"
)

// Style selects the comment syntax of the host document.
type Style int

const (
	// StyleMarkup uses HTML comments (<!-- BEGIN:NAME -->), for markdown hosts.
	StyleMarkup Style = iota
	// StyleLine uses hash line comments (# BEGIN:NAME), for .gitignore-like hosts.
	StyleLine
)

// MissingError indicates the host document exists but does not contain the
// expected BEGIN/END marker pair. The patch is aborted rather than guessing
// an insertion point.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("sentinel block %s not found in host document", e.Name)
}

// Markers returns the BEGIN and END marker lines for a block name.
func Markers(name string, style Style) (begin, end string) {
	switch style {
	case StyleLine:
		return "# BEGIN:" + name, "# END:" + name
	default:
		return fmt.Sprintf("<!-- BEGIN:%s -->", name), fmt.Sprintf("<!-- END:%s -->", name)
	}
}

// Patch replaces the region enclosed by the block's marker pair with body,
// leaving all content outside the markers byte-identical. The markers
// themselves are kept. Returns *MissingError when the pair is absent or
// malformed (END before BEGIN, or only one marker present).
func Patch(content []byte, name, body string, style Style) ([]byte, error) {
	begin, end := Markers(name, style)
	text := string(content)

	beginIdx := strings.Index(text, begin)
	if beginIdx < 0 {
		return nil, &MissingError{Name: name}
	}
	endIdx := strings.Index(text[beginIdx+len(begin):], end)
	if endIdx < 0 {
		return nil, &MissingError{Name: name}
	}
	endIdx += beginIdx + len(begin)

	var out strings.Builder
	out.WriteString(text[:beginIdx])
	out.WriteString(begin)
	out.WriteString("\n")
	if body != "" {
		out.WriteString(strings.TrimSuffix(body, "\n"))
		out.WriteString("\n")
	}
	out.WriteString(text[endIdx:])
	return []byte(out.String()), nil
}

// Extract returns the text between the block's marker pair, without the
// markers, and whether the pair was found.
func Extract(content []byte, name string, style Style) (string, bool) {
	begin, end := Markers(name, style)
	text := string(content)

	beginIdx := strings.Index(text, begin)
	if beginIdx < 0 {
		return "", false
	}
	rest := text[beginIdx+len(begin):]
	endIdx := strings.Index(rest, end)
	if endIdx < 0 {
		return "", false
	}
	body := rest[:endIdx]
	body = strings.TrimPrefix(body, "\n")
	return strings.TrimSuffix(body, "\n"), true
}
