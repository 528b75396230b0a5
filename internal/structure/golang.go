package structure

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/dshills/ctxselect/pkg/types"
)

// goParser performs a strict parse of Go source. Input without a package
// clause is retried as top-level declarations and then as statements.
type goParser struct{}

func (goParser) language() string { return LangGo }

const (
	goPackagePrefix = "package p\n"
	goFuncPrefix    = "package p\nfunc _() {\n"
	goFuncSuffix    = "\n}\n"
)

func (goParser) parse(src []byte) (types.StructureSet, bool, error) {
	text := string(src)

	var candidates []string
	if strings.HasPrefix(strings.TrimSpace(text), "package ") {
		candidates = []string{text}
	} else {
		candidates = []string{goPackagePrefix + text, goFuncPrefix + text + goFuncSuffix}
	}

	var lastErr error
	for _, candidate := range candidates {
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, "", candidate, parser.SkipObjectResolution)
		if err != nil {
			lastErr = err
			continue
		}

		extractor := &goStructureExtractor{set: types.NewStructureSet()}
		ast.Inspect(file, extractor.visit)
		return extractor.set, true, nil
	}

	return types.StructureSet{}, false, lastErr
}

// goStructureExtractor is a visitor collecting type, func and assignment names
type goStructureExtractor struct {
	set types.StructureSet
}

func (e *goStructureExtractor) visit(node ast.Node) bool {
	if node == nil {
		return false
	}

	switch n := node.(type) {
	case *ast.TypeSpec:
		e.set.AddClass(n.Name.Name)
	case *ast.FuncDecl:
		if n.Name.Name != "_" {
			e.set.AddFunction(n.Name.Name)
		}
	case *ast.ValueSpec:
		for _, name := range n.Names {
			e.addVariable(name.Name)
		}
	case *ast.AssignStmt:
		for _, lhs := range n.Lhs {
			if ident, ok := lhs.(*ast.Ident); ok {
				e.addVariable(ident.Name)
			}
		}
	}

	return true
}

func (e *goStructureExtractor) addVariable(name string) {
	if name == "_" {
		return
	}
	e.set.AddVariable(name)
}

// GoDeclaration is a top-level declaration found in Go source
type GoDeclaration struct {
	Name      string
	Kind      types.ChunkKind
	StartLine int
	EndLine   int
}

// GoDeclarations lists top-level declarations of a Go file together with
// the package name and import paths. Syntax errors are non-fatal: whatever
// partial AST the parser produced is used, and ok reports a clean parse.
func GoDeclarations(src []byte) (pkg string, imports []string, decls []GoDeclaration, ok bool) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, parser.ParseComments|parser.SkipObjectResolution)
	if file == nil {
		return "", nil, nil, false
	}

	if file.Name != nil {
		pkg = file.Name.Name
	}
	for _, imp := range file.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, `"`))
	}

	for _, decl := range file.Decls {
		start := decl.Pos()
		end := decl.End()

		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Doc != nil {
				start = d.Doc.Pos()
			}
			kind := types.ChunkFunction
			name := d.Name.Name
			if d.Recv != nil && len(d.Recv.List) > 0 {
				kind = types.ChunkMethod
				if recv := receiverName(d.Recv.List[0].Type); recv != "" {
					name = recv + "." + name
				}
			}
			decls = append(decls, GoDeclaration{
				Name:      name,
				Kind:      kind,
				StartLine: fset.Position(start).Line,
				EndLine:   fset.Position(end).Line,
			})
		case *ast.GenDecl:
			if d.Tok == token.IMPORT {
				continue
			}
			if d.Doc != nil {
				start = d.Doc.Pos()
			}
			kind := types.ChunkVarGroup
			if d.Tok == token.TYPE {
				kind = types.ChunkTypeDecl
			}
			decls = append(decls, GoDeclaration{
				Name:      genDeclName(d),
				Kind:      kind,
				StartLine: fset.Position(start).Line,
				EndLine:   fset.Position(end).Line,
			})
		}
	}

	return pkg, imports, decls, err == nil
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	}
	return ""
}

func genDeclName(d *ast.GenDecl) string {
	var names []string
	for _, spec := range d.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			names = append(names, s.Name.Name)
		case *ast.ValueSpec:
			for _, n := range s.Names {
				names = append(names, n.Name)
			}
		}
	}
	return strings.Join(names, ",")
}
