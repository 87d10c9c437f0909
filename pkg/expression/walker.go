package expression

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// SQLWalker converts an expr AST to a parameterized SQL WHERE fragment.
// Identifiers must be in the allowed column set; literals always become args.
type SQLWalker struct {
	builder strings.Builder
	args    []interface{}
	columns map[string]string
	err     error
}

// isNilNode checks if a node represents a null/nil value
func isNilNode(node ast.Node) bool {
	if _, ok := node.(*ast.NilNode); ok {
		return true
	}
	if id, ok := node.(*ast.IdentifierNode); ok {
		val := strings.ToLower(id.Value)
		return val == "null" || val == "nil"
	}
	return false
}

// ToSQL converts a filter expression to SQL. columns maps the identifiers an
// admin may type to the physical column they stand for.
func ToSQL(expression string, columns map[string]string) (string, []interface{}, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse expression: %w", err)
	}

	walker := &SQLWalker{
		args:    make([]interface{}, 0),
		columns: columns,
	}
	walker.walk(&tree.Node)

	if walker.err != nil {
		return "", nil, walker.err
	}
	return walker.builder.String(), walker.args, nil
}

func (w *SQLWalker) walk(node *ast.Node) {
	if w.err != nil || node == nil || *node == nil {
		return
	}

	switch v := (*node).(type) {
	case *ast.BinaryNode:
		w.visitBinary(v)
	case *ast.UnaryNode:
		if v.Operator != "!" && v.Operator != "not" {
			w.err = fmt.Errorf("unsupported unary operator: %s", v.Operator)
			return
		}
		w.builder.WriteString("(NOT ")
		w.walk(&v.Node)
		w.builder.WriteString(")")
	case *ast.IdentifierNode:
		column, ok := w.columns[v.Value]
		if !ok {
			w.err = fmt.Errorf("unknown field: %s", v.Value)
			return
		}
		w.builder.WriteString("`" + column + "`")
	case *ast.IntegerNode:
		w.placeholder(v.Value)
	case *ast.FloatNode:
		w.placeholder(v.Value)
	case *ast.StringNode:
		w.placeholder(v.Value)
	case *ast.BoolNode:
		w.placeholder(v.Value)
	case *ast.NilNode:
		w.builder.WriteString("NULL")
	case *ast.CallNode:
		w.visitCall(v)
	default:
		w.err = fmt.Errorf("unsupported node type: %T", v)
	}
}

func (w *SQLWalker) placeholder(value interface{}) {
	w.builder.WriteString("?")
	w.args = append(w.args, value)
}

var binaryOperators = map[string]string{
	"==":  "=",
	"!=":  "!=",
	">":   ">",
	">=":  ">=",
	"<":   "<",
	"<=":  "<=",
	"&&":  "AND",
	"and": "AND",
	"||":  "OR",
	"or":  "OR",
}

func (w *SQLWalker) visitBinary(node *ast.BinaryNode) {
	rightIsNil := isNilNode(node.Right)
	leftIsNil := isNilNode(node.Left)

	if rightIsNil || leftIsNil {
		fieldNode := node.Left
		if leftIsNil {
			fieldNode = node.Right
		}

		w.builder.WriteString("(")
		w.walk(&fieldNode)
		switch node.Operator {
		case "==":
			w.builder.WriteString(" IS NULL")
		case "!=":
			w.builder.WriteString(" IS NOT NULL")
		default:
			w.err = fmt.Errorf("unsupported operator for null comparison: %s", node.Operator)
		}
		w.builder.WriteString(")")
		return
	}

	op, ok := binaryOperators[node.Operator]
	if !ok {
		w.err = fmt.Errorf("unsupported operator: %s", node.Operator)
		return
	}

	w.builder.WriteString("(")
	w.walk(&node.Left)
	w.builder.WriteString(" " + op + " ")
	w.walk(&node.Right)
	w.builder.WriteString(")")
}

func (w *SQLWalker) visitCall(node *ast.CallNode) {
	callee, ok := node.Callee.(*ast.IdentifierNode)
	if !ok {
		w.err = fmt.Errorf("unsupported callee type: %T", node.Callee)
		return
	}

	fnName := strings.ToUpper(callee.Value)
	switch fnName {
	case "LOWER":
		if len(node.Arguments) != 1 {
			w.err = fmt.Errorf("LOWER requires 1 argument")
			return
		}
		w.builder.WriteString("LOWER(")
		arg := node.Arguments[0]
		w.walk(&arg)
		w.builder.WriteString(")")

	case "TODAY":
		w.builder.WriteString("CURDATE()")

	case "CONTAINS", "STARTS_WITH":
		if len(node.Arguments) != 2 {
			w.err = fmt.Errorf("%s requires 2 arguments", fnName)
			return
		}
		strArg, ok := node.Arguments[1].(*ast.StringNode)
		if !ok {
			w.err = fmt.Errorf("%s second argument must be a string", fnName)
			return
		}
		arg0 := node.Arguments[0]
		w.builder.WriteString("(")
		w.walk(&arg0)
		w.builder.WriteString(" LIKE ?)")
		pattern := escapeLike(strArg.Value) + "%"
		if fnName == "CONTAINS" {
			pattern = "%" + pattern
		}
		w.args = append(w.args, pattern)

	default:
		w.err = fmt.Errorf("unsupported function: %s", callee.Value)
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}
