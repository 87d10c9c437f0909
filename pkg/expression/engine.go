// Package expression wraps expr-lang/expr for the boolean rules admins type
// into the dashboard: campaign audience segments, experiment targeting and
// list filters.
package expression

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine compiles expressions once and caches the programs
type Engine struct {
	programCache map[string]*vm.Program
	mu           sync.RWMutex
}

// NewEngine creates a new expression engine
func NewEngine() *Engine {
	return &Engine{
		programCache: make(map[string]*vm.Program),
	}
}

// Match evaluates a boolean rule against env. Variables missing from env
// evaluate to nil rather than failing, since visitor attributes are sparse.
func (e *Engine) Match(expression string, env map[string]interface{}) (bool, error) {
	program, err := e.getProgram(expression)
	if err != nil {
		return false, err
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	matched, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("expression must evaluate to a boolean, got %T", output)
	}
	return matched, nil
}

// Validate compiles the expression without running it
func (e *Engine) Validate(expression string) error {
	_, err := e.getProgram(expression)
	return err
}

func (e *Engine) getProgram(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.programCache[expression]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prog, ok := e.programCache[expression]; ok {
		return prog, nil
	}

	options := []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
		expr.Function("TODAY", func(params ...interface{}) (interface{}, error) {
			return time.Now().Format("2006-01-02"), nil
		}),
		expr.Function("LOWER", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("LOWER requires 1 argument")
			}
			s, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("LOWER argument must be string")
			}
			return strings.ToLower(s), nil
		}),
		expr.Function("CONTAINS", func(params ...interface{}) (interface{}, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("CONTAINS requires 2 arguments")
			}
			s, ok1 := params[0].(string)
			sub, ok2 := params[1].(string)
			if !ok1 || !ok2 {
				return false, nil
			}
			return strings.Contains(strings.ToLower(s), strings.ToLower(sub)), nil
		}),
		expr.Function("STARTS_WITH", func(params ...interface{}) (interface{}, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("STARTS_WITH requires 2 arguments")
			}
			s, ok1 := params[0].(string)
			prefix, ok2 := params[1].(string)
			if !ok1 || !ok2 {
				return false, nil
			}
			return strings.HasPrefix(s, prefix), nil
		}),
	}

	program, err := expr.Compile(expression, options...)
	if err != nil {
		return nil, err
	}

	e.programCache[expression] = program
	return program, nil
}
