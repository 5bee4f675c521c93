package codegen

import (
	"encoding/json"
	"fmt"
	"go/ast"
	"strings"
	"unicode"
)

// typeIndex resolves named types declared in the handler's package.
type typeIndex struct {
	structs map[string]*ast.StructType
	aliases map[string]ast.Expr
	docs    map[string]string
}

// schemaFor derives the JSON Schema for a Go type expression. visited
// guards against recursive struct types.
func (idx *typeIndex) schemaFor(expr ast.Expr, visited map[string]bool) (map[string]any, error) {
	switch t := expr.(type) {
	case *ast.Ident:
		return idx.schemaForIdent(t, visited)
	case *ast.SelectorExpr:
		return schemaForSelector(t)
	case *ast.StarExpr:
		inner, err := idx.schemaFor(t.X, visited)
		if err != nil {
			return nil, err
		}
		return map[string]any{"anyOf": []any{inner, map[string]any{"type": "null"}}}, nil
	case *ast.ArrayType:
		if t.Len != nil {
			return nil, fmt.Errorf("fixed-size arrays are not supported")
		}
		if id, ok := t.Elt.(*ast.Ident); ok && id.Name == "byte" {
			return map[string]any{"type": "string", "contentEncoding": "base64"}, nil
		}
		items, err := idx.schemaFor(t.Elt, visited)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "array", "items": items}, nil
	case *ast.MapType:
		if id, ok := t.Key.(*ast.Ident); !ok || id.Name != "string" {
			return nil, fmt.Errorf("only string-keyed maps are supported")
		}
		elem, err := idx.schemaFor(t.Value, visited)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "object", "additionalProperties": elem}, nil
	default:
		return nil, fmt.Errorf("unsupported type expression %T", expr)
	}
}

func (idx *typeIndex) schemaForIdent(id *ast.Ident, visited map[string]bool) (map[string]any, error) {
	switch id.Name {
	case "string":
		return map[string]any{"type": "string"}, nil
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return map[string]any{"type": "integer"}, nil
	case "float32", "float64":
		return map[string]any{"type": "number"}, nil
	case "bool":
		return map[string]any{"type": "boolean"}, nil
	case "any":
		return map[string]any{}, nil
	}
	if st, ok := idx.structs[id.Name]; ok {
		if visited[id.Name] {
			// Cycle: fall back to an open object.
			return map[string]any{"type": "object"}, nil
		}
		visited[id.Name] = true
		defer delete(visited, id.Name)
		return idx.schemaForStruct(st, visited)
	}
	if alias, ok := idx.aliases[id.Name]; ok {
		return idx.schemaFor(alias, visited)
	}
	return nil, fmt.Errorf("unknown type %q", id.Name)
}

func schemaForSelector(sel *ast.SelectorExpr) (map[string]any, error) {
	pkg, ok := sel.X.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("unsupported selector expression")
	}
	switch pkg.Name + "." + sel.Sel.Name {
	case "uuid.UUID":
		return map[string]any{"type": "string", "format": "uuid"}, nil
	case "time.Time":
		return map[string]any{"type": "string", "format": "date-time"}, nil
	case "time.Duration":
		return map[string]any{"type": "integer"}, nil
	case "json.RawMessage":
		return map[string]any{}, nil
	default:
		return nil, fmt.Errorf("unsupported type %s.%s", pkg.Name, sel.Sel.Name)
	}
}

func (idx *typeIndex) schemaForStruct(st *ast.StructType, visited map[string]bool) (map[string]any, error) {
	props := make(map[string]any)
	var required []string
	for _, f := range st.Fields.List {
		if len(f.Names) == 0 {
			// Embedded fields are not part of the published surface.
			continue
		}
		fs, err := idx.schemaFor(f.Type, visited)
		if err != nil {
			return nil, err
		}
		_, optional := f.Type.(*ast.StarExpr)
		for _, name := range f.Names {
			if !name.IsExported() {
				continue
			}
			wire := fieldName(name.Name, f.Tag)
			if wire == "-" {
				continue
			}
			props[wire] = fs
			if !optional {
				required = append(required, wire)
			}
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc, nil
}

// fieldName returns the wire name for a struct field: the json tag when
// present, snake_case of the Go name otherwise.
func fieldName(goName string, tag *ast.BasicLit) string {
	if tag != nil {
		raw := strings.Trim(tag.Value, "`")
		if v, ok := lookupTag(raw, "json"); ok {
			if name := strings.Split(v, ",")[0]; name != "" {
				return name
			}
		}
	}
	return snakeCase(goName)
}

func lookupTag(tag, key string) (string, bool) {
	for tag != "" {
		i := strings.IndexByte(tag, ':')
		if i < 0 {
			break
		}
		name := strings.TrimSpace(tag[:i])
		rest := tag[i+1:]
		if !strings.HasPrefix(rest, `"`) {
			break
		}
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			break
		}
		if name == key {
			return rest[1 : 1+end], true
		}
		tag = strings.TrimSpace(rest[end+2:])
	}
	return "", false
}

// snakeCase converts a Go identifier to its wire form: Message → message,
// RequestID → request_id.
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && !unicode.IsUpper(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// renderSchema marshals a schema document into its literal form for
// embedding in generated source.
func renderSchema(doc map[string]any) string {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(raw)
}
