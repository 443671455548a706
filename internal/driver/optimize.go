package driver

import (
	"github.com/2b45/zeek/internal/ast"
)

// OptimizeStmt runs optimization over a reduced body and returns the
// rewritten tree. It assumes canonical form and must not run before
// reduction.
//
// Three rewrites, all driven by the statement contract:
//   - statements in a list after a NoFlowAfter point are unreachable
//     and dropped
//   - pure expression statements compute a discarded value and drop
//   - branches with a constant condition collapse to the taken arm
func OptimizeStmt(s ast.Stmt) ast.Stmt {
	switch v := s.(type) {
	case *ast.StmtList:
		return optimizeList(v)
	case *ast.IfStmt:
		return optimizeIf(v)
	case *ast.WhileStmt:
		v.Body = OptimizeStmt(v.Body)
		return v
	case *ast.ExprStmt:
		if v.E.IsPure() {
			dead := ast.NewNull()
			ast.MarkReduced(dead)
			return dead
		}
		return v
	default:
		return s
	}
}

func optimizeList(list *ast.StmtList) ast.Stmt {
	var kept []ast.Stmt
	for _, c := range list.Stmts {
		c = OptimizeStmt(c)
		if _, isNull := c.(*ast.NullStmt); isNull {
			continue
		}
		kept = append(kept, c)
		// Anything after this point never runs. Breaks still count
		// here: control leaves this list either way.
		if c.NoFlowAfter(false) {
			break
		}
	}
	switch len(kept) {
	case 0:
		dead := ast.NewNull()
		ast.MarkReduced(dead)
		return dead
	case 1:
		return kept[0]
	default:
		list.Stmts = kept
		return list
	}
}

func optimizeIf(s *ast.IfStmt) ast.Stmt {
	if s.Then != nil {
		s.Then = OptimizeStmt(s.Then)
	}
	if s.Else != nil {
		s.Else = OptimizeStmt(s.Else)
	}

	c, ok := s.Cond.(*ast.ConstExpr)
	if !ok {
		return s
	}
	var taken ast.Stmt
	if c.V.AsBool() {
		taken = s.Then
	} else {
		taken = s.Else
	}
	if taken == nil {
		taken = ast.NewNull()
		ast.MarkReduced(taken)
	}
	return taken
}
