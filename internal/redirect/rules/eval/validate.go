package eval

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

var allowedBinary = map[string]struct{}{
	"==": {}, "!=": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
	"&&": {}, "||": {}, "and": {}, "or": {},
	"in": {}, "not in": {},
	"startsWith": {}, "endsWith": {}, "contains": {}, "matches": {},
}

// Validate accepts boolean conditions over plain variables: comparisons,
// logic, membership and the string operators. Calls, member access and
// arithmetic are rejected.
func Validate(cond string) error {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return nil
	}

	tree, err := parser.Parse(cond)
	if err != nil {
		return fmt.Errorf("parse cond: %w", err)
	}

	v := &validator{}
	ast.Walk(&tree.Node, v)
	return v.err
}

type validator struct {
	err error
}

func (v *validator) Visit(node *ast.Node) {
	if v.err != nil {
		return
	}
	switch n := (*node).(type) {
	case *ast.CallNode:
		v.err = fmt.Errorf("function calls are not allowed")
	case *ast.BuiltinNode:
		v.err = fmt.Errorf("function calls are not allowed (found %q(...))", n.Name)
	case *ast.MemberNode, *ast.SliceNode:
		v.err = fmt.Errorf("member access is not allowed")
	case *ast.PointerNode:
		v.err = fmt.Errorf("closures are not allowed")
	case *ast.BinaryNode:
		if _, ok := allowedBinary[n.Operator]; !ok {
			v.err = fmt.Errorf("operator %q is not allowed", n.Operator)
		}
	case *ast.UnaryNode:
		if n.Operator != "!" && n.Operator != "not" {
			v.err = fmt.Errorf("operator %q is not allowed", n.Operator)
		}
	}
}
