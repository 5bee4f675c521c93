// Command plexusgen generates the dispatch table and schema constants for
// a handler type from its method signatures.
//
// Usage:
//
//	plexusgen -dir ./example/echo -type EchoHandler [-namespace echo] [-version 1.0.0] [-o path]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/plexuskit/plexus/codegen"
)

func main() {
	var (
		dir       = flag.String("dir", ".", "directory of the handler package")
		typeName  = flag.String("type", "", "handler type name (required)")
		namespace = flag.String("namespace", "", "activation namespace (default: derived from type name)")
		version   = flag.String("version", "", "activation version (default: 0.1.0)")
		desc      = flag.String("desc", "", "activation description (default: type doc comment)")
		out       = flag.String("o", "", "output path (default: <dir>/<snake(type)>_plexus.go)")
	)
	flag.Parse()
	if *typeName == "" {
		fmt.Fprintln(os.Stderr, "plexusgen: -type is required")
		flag.Usage()
		os.Exit(2)
	}
	path, err := codegen.Run(codegen.ParseOptions{
		Dir:         *dir,
		Type:        *typeName,
		Namespace:   *namespace,
		Version:     *version,
		Description: *desc,
	}, *out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plexusgen: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}
