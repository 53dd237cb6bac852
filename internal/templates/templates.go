// Package templates provides embedded skeletons for the host documents clasp
// owns sentinel blocks in. A skeleton is used only when the host document
// does not exist at all; an existing document missing its marker pair is an
// error, never regenerated.
package templates

import (
	"embed"
	"fmt"
)

//go:embed *.tmpl
var templatesFS embed.FS

// Skeleton names.
const (
	ClaudeMD  = "claude_md"
	Gitignore = "gitignore"
)

// Get returns a host-document skeleton by name, marker pairs included.
func Get(name string) ([]byte, error) {
	content, err := templatesFS.ReadFile(name + ".tmpl")
	if err != nil {
		return nil, fmt.Errorf("template '%s' not found: %w", name, err)
	}
	return content, nil
}
