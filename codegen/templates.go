package codegen

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
)

//go:embed templates/*.go.tpl
var templateFS embed.FS

// readTemplate returns the named template source.
func readTemplate(name string) string {
	content, err := fs.ReadFile(templateFS, path.Join("templates", name+".go.tpl"))
	if err != nil {
		panic(fmt.Sprintf("failed to load template %s: %v", name, err))
	}
	return string(content)
}
