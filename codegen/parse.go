package codegen

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"io/fs"
	"sort"
	"strings"
)

// ParseOptions identify the handler type to generate for.
type ParseOptions struct {
	// Dir is the directory of the handler's package.
	Dir string
	// Type is the handler type name.
	Type string
	// Namespace is the activation namespace; defaults to the snake_case
	// type name with a trailing "Handler"/"Activation" suffix removed.
	Namespace string
	// Version is the activation version; defaults to "0.1.0".
	Version string
	// Description overrides the type's doc comment.
	Description string
}

// Parse loads the handler package and derives the activation data for the
// named type from its exported method signatures.
func Parse(opts ParseOptions) (*ActivationData, error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, opts.Dir, func(fi fs.FileInfo) bool {
		return !strings.HasSuffix(fi.Name(), "_test.go")
	}, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", opts.Dir, err)
	}

	var pkg *ast.Package
	for name, p := range pkgs {
		if strings.HasSuffix(name, "_test") {
			continue
		}
		pkg = p
	}
	if pkg == nil {
		return nil, fmt.Errorf("no Go package found in %s", opts.Dir)
	}

	idx := indexTypes(pkg)
	typeDoc := ""
	if d, ok := idx.docs[opts.Type]; ok {
		typeDoc = d
	}
	if _, isStruct := idx.structs[opts.Type]; !isStruct {
		if _, isAlias := idx.aliases[opts.Type]; !isAlias {
			return nil, fmt.Errorf("type %q not found in %s", opts.Type, opts.Dir)
		}
	}

	data := &ActivationData{
		Package:         pkg.Name,
		HandlerType:     opts.Type,
		ConstructorName: "New" + strings.TrimSuffix(opts.Type, "Handler") + "Activation",
		Namespace:       opts.Namespace,
		Version:         opts.Version,
		Description:     opts.Description,
	}
	if data.Namespace == "" {
		data.Namespace = snakeCase(strings.TrimSuffix(strings.TrimSuffix(opts.Type, "Handler"), "Activation"))
	}
	if data.Version == "" {
		data.Version = "0.1.0"
	}
	if data.Description == "" {
		data.Description = firstSentence(typeDoc)
	}

	for _, file := range orderedFiles(pkg) {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || !fn.Name.IsExported() {
				continue
			}
			if receiverType(fn) != opts.Type {
				continue
			}
			m, err := parseMethod(fn, idx)
			if err != nil {
				return nil, fmt.Errorf("method %s.%s: %w", opts.Type, fn.Name.Name, err)
			}
			data.Methods = append(data.Methods, m)
			for _, p := range m.Params {
				if strings.Contains(p.GoType, "uuid.UUID") {
					data.NeedsUUID = true
				}
			}
		}
	}
	if len(data.Methods) == 0 {
		return nil, fmt.Errorf("type %q declares no exported methods", opts.Type)
	}
	return data, nil
}

// parseMethod classifies one handler signature and derives its schema.
func parseMethod(fn *ast.FuncDecl, idx *typeIndex) (*MethodData, error) {
	doc, directives := splitDirectives(fn.Doc.Text())
	m := &MethodData{
		GoName:      fn.Name.Name,
		Name:        snakeCase(fn.Name.Name),
		Description: doc,
	}
	m.ConstName = "Method" + fn.Name.Name
	m.ArgsStruct = lowerFirst(fn.Name.Name) + "Args"

	params := fn.Type.Params.List
	if len(params) == 0 || !isSelector(params[0].Type, "context", "Context") {
		return nil, fmt.Errorf("first parameter must be context.Context")
	}
	rest := params[1:]
	if len(rest) > 0 && isPointerTo(rest[0].Type, "bidi", "Channel") {
		m.Bidirectional = true
		rest = rest[1:]
	}
	if len(rest) > 0 && isPointerTo(rest[0].Type, "stream", "Writer") {
		m.Streaming = true
		rest = rest[1:]
	}
	for _, f := range rest {
		if isPointerTo(f.Type, "bidi", "Channel") {
			return nil, fmt.Errorf("*bidi.Channel must be the first parameter after ctx")
		}
		if isPointerTo(f.Type, "stream", "Writer") {
			return nil, fmt.Errorf("*stream.Writer must precede data parameters")
		}
		if len(f.Names) == 0 {
			return nil, fmt.Errorf("data parameters must be named")
		}
		doc, err := idx.schemaFor(f.Type, make(map[string]bool))
		if err != nil {
			return nil, err
		}
		_, optional := f.Type.(*ast.StarExpr)
		for _, name := range f.Names {
			wire := snakeCase(name.Name)
			m.Params = append(m.Params, &ParamData{
				Name:     wire,
				GoField:  upperFirst(name.Name),
				GoType:   types.ExprString(f.Type),
				Schema:   renderSchema(doc),
				Required: !optional,
				Doc:      directives.params[wire],
			})
		}
	}

	results := fn.Type.Results
	switch {
	case m.Streaming:
		if results == nil || len(results.List) != 1 || !isIdent(results.List[0].Type, "error") {
			return nil, fmt.Errorf("streaming methods return exactly error")
		}
		m.ReturnSchema = "{}"
		if directives.item != "" {
			doc, err := idx.schemaFor(&ast.Ident{Name: directives.item}, make(map[string]bool))
			if err != nil {
				return nil, fmt.Errorf("plexus:item %s: %w", directives.item, err)
			}
			m.ReturnSchema = renderSchema(doc)
		}
	default:
		if results == nil || len(results.List) != 2 || !isIdent(results.List[1].Type, "error") {
			return nil, fmt.Errorf("non-streaming methods return (result, error)")
		}
		doc, err := idx.schemaFor(results.List[0].Type, make(map[string]bool))
		if err != nil {
			return nil, err
		}
		m.ReturnSchema = renderSchema(doc)
	}
	return m, nil
}

type directiveSet struct {
	params map[string]string
	item   string
}

// splitDirectives separates plexus: directive lines from the prose
// description.
func splitDirectives(doc string) (string, directiveSet) {
	d := directiveSet{params: make(map[string]string)}
	var prose []string
	for _, line := range strings.Split(doc, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "plexus:param "):
			fields := strings.SplitN(strings.TrimPrefix(trimmed, "plexus:param "), " ", 2)
			if len(fields) == 2 {
				d.params[fields[0]] = strings.TrimSpace(fields[1])
			}
		case strings.HasPrefix(trimmed, "plexus:item "):
			d.item = strings.TrimSpace(strings.TrimPrefix(trimmed, "plexus:item "))
		default:
			prose = append(prose, line)
		}
	}
	return strings.TrimSpace(strings.Join(prose, "\n")), d
}

func indexTypes(pkg *ast.Package) *typeIndex {
	idx := &typeIndex{
		structs: make(map[string]*ast.StructType),
		aliases: make(map[string]ast.Expr),
		docs:    make(map[string]string),
	}
	for _, file := range pkg.Files {
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				if st, ok := ts.Type.(*ast.StructType); ok {
					idx.structs[ts.Name.Name] = st
				} else {
					idx.aliases[ts.Name.Name] = ts.Type
				}
				switch {
				case ts.Doc != nil:
					idx.docs[ts.Name.Name] = ts.Doc.Text()
				case gd.Doc != nil && len(gd.Specs) == 1:
					idx.docs[ts.Name.Name] = gd.Doc.Text()
				}
			}
		}
	}
	return idx
}

func orderedFiles(pkg *ast.Package) []*ast.File {
	names := make([]string, 0, len(pkg.Files))
	for name := range pkg.Files {
		names = append(names, name)
	}
	// Deterministic generation order across runs.
	sort.Strings(names)
	files := make([]*ast.File, len(names))
	for i, name := range names {
		files[i] = pkg.Files[name]
	}
	return files
}

func receiverType(fn *ast.FuncDecl) string {
	if len(fn.Recv.List) != 1 {
		return ""
	}
	t := fn.Recv.List[0].Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	if id, ok := t.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

func isSelector(expr ast.Expr, pkg, name string) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	id, ok := sel.X.(*ast.Ident)
	return ok && id.Name == pkg && sel.Sel.Name == name
}

func isPointerTo(expr ast.Expr, pkg, name string) bool {
	star, ok := expr.(*ast.StarExpr)
	return ok && isSelector(star.X, pkg, name)
}

func isIdent(expr ast.Expr, name string) bool {
	id, ok := expr.(*ast.Ident)
	return ok && id.Name == name
}

func firstSentence(doc string) string {
	doc = strings.TrimSpace(doc)
	if i := strings.IndexAny(doc, ".\n"); i >= 0 {
		return strings.TrimSpace(doc[:i+1])
	}
	return doc
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
