package structure

import (
	"context"
	"errors"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/dshills/ctxselect/pkg/types"
)

var errPythonSyntax = errors.New("python syntax error")

// pythonParser performs a strict parse using the tree-sitter Python grammar
type pythonParser struct{}

func (pythonParser) language() string { return LangPython }

func (pythonParser) parse(src []byte) (types.StructureSet, bool, error) {
	// Parsers are not safe for concurrent use, so one is created per call
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return types.StructureSet{}, false, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return types.StructureSet{}, false, errPythonSyntax
	}

	set := types.NewStructureSet()
	walkNode(root, func(node *sitter.Node) {
		switch node.Type() {
		case "class_definition":
			set.AddClass(fieldText(node, "name", src))
		case "function_definition":
			set.AddFunction(fieldText(node, "name", src))
		case "assignment", "augmented_assignment":
			collectTargets(node.ChildByFieldName("left"), src, &set)
		}
	})

	return set, true, nil
}

// PythonDefinition is a top-level class or function found in Python source
type PythonDefinition struct {
	Name      string
	Kind      types.ChunkKind
	StartLine int
	EndLine   int
}

// PythonDefinitions lists the top-level classes and functions of src.
// ok is false when src does not parse cleanly.
func PythonDefinitions(src []byte) (defs []PythonDefinition, ok bool) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, false
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		def := node
		if node.Type() == "decorated_definition" {
			if inner := node.ChildByFieldName("definition"); inner != nil {
				def = inner
			}
		}

		var kind types.ChunkKind
		switch def.Type() {
		case "class_definition":
			kind = types.ChunkClass
		case "function_definition":
			kind = types.ChunkFunction
		default:
			continue
		}

		defs = append(defs, PythonDefinition{
			Name:      fieldText(def, "name", src),
			Kind:      kind,
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
		})
	}

	return defs, true
}

// collectTargets records identifiers on the left side of an assignment
func collectTargets(node *sitter.Node, src []byte, set *types.StructureSet) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "identifier":
		set.AddVariable(node.Content(src))
	case "pattern_list", "tuple_pattern", "list_pattern", "parenthesized_expression":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			collectTargets(node.NamedChild(i), src, set)
		}
	}
}

func fieldText(node *sitter.Node, field string, src []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Content(src)
}

// walkNode visits node and all of its descendants depth-first
func walkNode(node *sitter.Node, visit func(*sitter.Node)) {
	if node == nil {
		return
	}
	visit(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		walkNode(node.Child(i), visit)
	}
}
