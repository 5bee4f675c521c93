package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"text/template"
)

// Generate renders the activation file for the given data and returns the
// gofmt-ed source.
func Generate(data *ActivationData) ([]byte, error) {
	tpl, err := template.New("activation").Parse(readTemplate("activation"))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render activation: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w\n%s", err, buf.String())
	}
	return src, nil
}

// OutputPath returns the conventional location of the generated file:
// <dir>/<snake(type)>_plexus.go.
func OutputPath(opts ParseOptions) string {
	return filepath.Join(opts.Dir, snakeCase(opts.Type)+"_plexus.go")
}

// Run parses the handler package, renders the activation file and writes
// it to out (or the conventional location when out is empty). It returns
// the written path.
func Run(opts ParseOptions, out string) (string, error) {
	data, err := Parse(opts)
	if err != nil {
		return "", err
	}
	src, err := Generate(data)
	if err != nil {
		return "", err
	}
	if out == "" {
		out = OutputPath(opts)
	}
	if err := os.WriteFile(out, src, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}
