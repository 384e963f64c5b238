package formula

import (
	"errors"
	"fmt"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"
)

// ErrNotArithmetic is returned for expressions that use anything beyond
// numbers, arithmetic operators, and the allowed Math members.
var ErrNotArithmetic = errors.New("formula is not an arithmetic expression")

// maxArgs bounds the argument list of a Math call.
const maxArgs = 16

var mathFuncs = map[string]bool{
	"abs": true, "ceil": true, "floor": true, "round": true, "trunc": true,
	"sqrt": true, "cbrt": true, "pow": true, "exp": true, "log": true,
	"log10": true, "log2": true, "min": true, "max": true, "sign": true,
}

var mathConsts = map[string]bool{"PI": true, "E": true, "LN2": true, "LN10": true}

var arithmeticOps = map[token.Token]bool{
	token.PLUS: true, token.MINUS: true, token.MULTIPLY: true,
	token.SLASH: true, token.REMAINDER: true, token.EXPONENT: true,
}

// checkArithmetic parses expr and walks its syntax tree. Only a single
// expression built from number literals, + - * / % **, unary signs, and
// Math functions or constants is accepted.
func checkArithmetic(expr string) error {
	prog, err := parser.ParseFile(nil, "", expr, 0)
	if err != nil {
		return err
	}
	if len(prog.Body) != 1 {
		return ErrNotArithmetic
	}
	stmt, ok := prog.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return ErrNotArithmetic
	}
	return checkNode(stmt.Expression)
}

func checkNode(e ast.Expression) error {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		return nil
	case *ast.BinaryExpression:
		if !arithmeticOps[n.Operator] {
			return fmt.Errorf("%w: operator %s", ErrNotArithmetic, n.Operator)
		}
		if err := checkNode(n.Left); err != nil {
			return err
		}
		return checkNode(n.Right)
	case *ast.UnaryExpression:
		if n.Postfix || (n.Operator != token.PLUS && n.Operator != token.MINUS) {
			return fmt.Errorf("%w: operator %s", ErrNotArithmetic, n.Operator)
		}
		return checkNode(n.Operand)
	case *ast.DotExpression:
		if name, ok := mathMember(n); ok && mathConsts[name] {
			return nil
		}
		return ErrNotArithmetic
	case *ast.CallExpression:
		dot, ok := n.Callee.(*ast.DotExpression)
		if !ok {
			return ErrNotArithmetic
		}
		name, ok := mathMember(dot)
		if !ok || !mathFuncs[name] {
			return ErrNotArithmetic
		}
		if len(n.ArgumentList) > maxArgs {
			return fmt.Errorf("%w: too many arguments to Math.%s", ErrNotArithmetic, name)
		}
		for _, arg := range n.ArgumentList {
			if err := checkNode(arg); err != nil {
				return err
			}
		}
		return nil
	default:
		return ErrNotArithmetic
	}
}

// mathMember returns the member name of a Math.<name> expression.
func mathMember(n *ast.DotExpression) (string, bool) {
	id, ok := n.Left.(*ast.Identifier)
	if !ok || id.Name != "Math" {
		return "", false
	}
	return string(n.Identifier.Name), true
}
