package services

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // registers ast.NewValueExpr

	"github.com/dapursambal/storefront/pkg/constants"
)

// deniedFunctions can stall the server or reach outside the allowed tables
var deniedFunctions = map[string]bool{
	"sleep":        true,
	"benchmark":    true,
	"load_file":    true,
	"get_lock":     true,
	"release_lock": true,
	"is_free_lock": true,
	"database":     true,
	"user":         true,
	"current_user": true,
	"system_user":  true,
	"session_user": true,
	"version":      true,
}

// ReportValidator parses admin report SQL and enforces the read-only rules
type ReportValidator struct {
	parser   *parser.Parser
	maxRows  uint64
	isTarget func(table string) bool
}

// NewReportValidator creates a validator for the reportable tables
func NewReportValidator() *ReportValidator {
	return &ReportValidator{
		parser:   parser.New(),
		maxRows:  constants.ReportRowLimit,
		isTarget: constants.IsReportableTable,
	}
}

// ValidateAndRewrite accepts a single SELECT over the allowed tables and
// returns it with a LIMIT no larger than the report row limit
func (v *ReportValidator) ValidateAndRewrite(sql string) (string, error) {
	stmtNodes, _, err := v.parser.Parse(sql, "", "")
	if err != nil {
		return "", fmt.Errorf("SQL parse error: %v", err)
	}
	if len(stmtNodes) != 1 {
		return "", fmt.Errorf("only single SQL statements are allowed")
	}

	stmt := stmtNodes[0]
	selectStmt, ok := stmt.(*ast.SelectStmt)
	if !ok {
		return "", fmt.Errorf("only SELECT statements are allowed in reports")
	}

	visitor := &reportVisitor{isTarget: v.isTarget}
	stmt.Accept(visitor)
	if visitor.err != nil {
		return "", visitor.err
	}
	if visitor.tables == 0 {
		return "", fmt.Errorf("reports must read from at least one table")
	}

	if err := v.applyLimit(selectStmt); err != nil {
		return "", err
	}

	var sb strings.Builder
	restoreCtx := format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)
	if err := stmt.Restore(restoreCtx); err != nil {
		return "", fmt.Errorf("SQL restore error: %v", err)
	}
	return sb.String(), nil
}

// applyLimit adds LIMIT maxRows, or lowers a larger literal limit
func (v *ReportValidator) applyLimit(stmt *ast.SelectStmt) error {
	if stmt.Limit == nil {
		stmt.Limit = &ast.Limit{Count: ast.NewValueExpr(v.maxRows, "", "")}
		return nil
	}

	value, ok := stmt.Limit.Count.(ast.ValueExpr)
	if !ok {
		return fmt.Errorf("LIMIT must be a number")
	}
	var count uint64
	switch n := value.GetValue().(type) {
	case uint64:
		count = n
	case int64:
		if n < 0 {
			return fmt.Errorf("LIMIT must be a number")
		}
		count = uint64(n)
	default:
		return fmt.Errorf("LIMIT must be a number")
	}
	if count > v.maxRows {
		stmt.Limit.Count = ast.NewValueExpr(v.maxRows, "", "")
	}
	return nil
}

type reportVisitor struct {
	isTarget func(table string) bool
	tables   int
	err      error
}

func (v *reportVisitor) Enter(in ast.Node) (ast.Node, bool) {
	if v.err != nil {
		return in, true
	}

	switch n := in.(type) {
	case *ast.SelectStmt:
		if n.SelectIntoOpt != nil {
			v.err = fmt.Errorf("SELECT ... INTO is not allowed")
		} else if n.LockInfo != nil && n.LockInfo.LockType != ast.SelectLockNone {
			v.err = fmt.Errorf("locking reads are not allowed")
		}
	case *ast.TableName:
		if n.Schema.O != "" {
			v.err = fmt.Errorf("access denied: schema-qualified table '%s.%s'", n.Schema.O, n.Name.O)
		} else if !v.isTarget(n.Name.L) {
			v.err = fmt.Errorf("access denied: cannot read table '%s'", n.Name.O)
		} else {
			v.tables++
		}
	case *ast.FuncCallExpr:
		if deniedFunctions[n.FnName.L] {
			v.err = fmt.Errorf("function %s is not allowed", n.FnName.O)
		}
	case *ast.VariableExpr:
		v.err = fmt.Errorf("variables are not allowed in reports")
	}

	if v.err != nil {
		return in, true
	}
	return in, false
}

func (v *reportVisitor) Leave(in ast.Node) (ast.Node, bool) {
	return in, true
}
