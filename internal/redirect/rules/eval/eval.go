// internal/redirect/rules/eval/eval.go
package eval

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Env lists the variables a condition may reference, with zero values of
// the right types so conditions are type-checked at compile time.
var Env = map[string]any{
	"host":     "",
	"domain":   "",
	"numeric":  false,
	"loopback": false,
}

type Compiled struct {
	Source  string
	program *vm.Program
}

// Compile validates and type-checks cond. An empty cond always holds.
func Compile(cond string) (*Compiled, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return &Compiled{}, nil
	}
	if err := Validate(cond); err != nil {
		return nil, err
	}

	program, err := expr.Compile(cond, expr.Env(Env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile cond: %w", err)
	}
	return &Compiled{Source: cond, program: program}, nil
}

func (c *Compiled) Eval(vars map[string]any) (bool, error) {
	if c == nil || c.program == nil {
		return true, nil
	}

	out, err := expr.Run(c.program, vars)
	if err != nil {
		return false, err
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("cond must evaluate to bool (got %T)", out)
	}
	return b, nil
}

// Eval compiles and runs cond in one go.
func Eval(cond string, vars map[string]any) (bool, error) {
	c, err := Compile(cond)
	if err != nil {
		return false, err
	}
	return c.Eval(vars)
}
