package driver

import (
	"github.com/2b45/zeek/internal/ast"
	"github.com/2b45/zeek/internal/types"
)

// UsageIssue is one finding from usage analysis.
type UsageIssue struct {
	Func    string
	Name    string
	Message string
}

// reportUsageIssues runs the configured depth of usage analysis and
// logs every finding.
func (d *Driver) reportUsageIssues() {
	for _, fi := range d.funcs {
		if !fi.ShouldAnalyze(d.opts.OnlyFunc) {
			continue
		}
		for _, issue := range FindUsageIssues(fi, d.opts.UsageIssues) {
			log.Warningf("%s: %s: %s", issue.Func, issue.Name, issue.Message)
		}
	}
}

// FindUsageIssues analyzes one function. Level 1 flags locals that
// are assigned but never read. Level 2 adds record locals with fields
// that are read but never initialized on any path, a shallow
// must-assign walk over the body.
func FindUsageIssues(fi *FuncInfo, level int) []UsageIssue {
	if level < 1 || fi.Body == nil {
		return nil
	}
	var issues []UsageIssue

	u := &usage{
		assigned: make(map[string]bool),
		read:     make(map[string]bool),
		fieldSet: make(map[string]map[int]bool),
		fieldGet: make(map[string]map[int]bool),
	}
	u.walkStmt(fi.Body)

	for name := range u.assigned {
		if isTemp(name) || u.read[name] {
			continue
		}
		issues = append(issues, UsageIssue{
			Func:    fi.Func.Name,
			Name:    name,
			Message: "assigned but never used",
		})
	}

	if level >= 2 {
		issues = append(issues, u.recordIssues(fi)...)
	}
	return issues
}

// Temporaries the reducer mints are always single-read by
// construction.
func isTemp(name string) bool { return len(name) > 0 && name[0] == '#' }

type usage struct {
	assigned map[string]bool
	read     map[string]bool

	// Per record-typed local: field indices stored to and loaded from.
	fieldSet map[string]map[int]bool
	fieldGet map[string]map[int]bool
}

func (u *usage) recordIssues(fi *FuncInfo) []UsageIssue {
	var issues []UsageIssue
	locals := append([]*ast.NameExpr(nil), fi.Scope.Locals...)
	for _, n := range locals {
		t := n.TypeOf()
		if t == nil || t.Tag() != types.TagRecord {
			continue
		}
		gets := u.fieldGet[n.ID]
		sets := u.fieldSet[n.ID]
		for field := range gets {
			if sets[field] {
				continue
			}
			if !fi.fieldHasDefault(t, field) {
				issues = append(issues, UsageIssue{
					Func:    fi.Func.Name,
					Name:    n.ID,
					Message: "field $" + t.FieldName(field) + " read but never initialized",
				})
			}
		}
	}
	return issues
}

func (fi *FuncInfo) fieldHasDefault(t *types.Type, field int) bool {
	return t.FieldDefault(field) != nil || !t.FieldOptional(field)
}

func (u *usage) walkStmt(s ast.Stmt) {
	switch v := s.(type) {
	case *ast.StmtList:
		for _, c := range v.Stmts {
			u.walkStmt(c)
		}
	case *ast.ExprStmt:
		u.walkExpr(v.E)
	case *ast.AssignStmt:
		u.walkAssign(v)
	case *ast.IfStmt:
		u.walkExpr(v.Cond)
		if v.Then != nil {
			u.walkStmt(v.Then)
		}
		if v.Else != nil {
			u.walkStmt(v.Else)
		}
	case *ast.WhileStmt:
		for _, c := range v.CondStmts {
			u.walkStmt(c)
		}
		u.walkExpr(v.Cond)
		u.walkStmt(v.Body)
	case *ast.ReturnStmt:
		if v.E != nil {
			u.walkExpr(v.E)
		}
	case *ast.PrintStmt:
		for _, a := range v.Args {
			u.walkExpr(a)
		}
	}
}

func (u *usage) walkAssign(s *ast.AssignStmt) {
	switch lhs := s.LHS.(type) {
	case *ast.NameExpr:
		u.assigned[lhs.ID] = true
	case *ast.FieldExpr:
		if rec, ok := lhs.Rec.(*ast.NameExpr); ok {
			u.read[rec.ID] = true
			if u.fieldSet[rec.ID] == nil {
				u.fieldSet[rec.ID] = make(map[int]bool)
			}
			u.fieldSet[rec.ID][lhs.Field] = true
		} else {
			u.walkExpr(lhs.Rec)
		}
	case *ast.IndexExpr:
		u.walkExpr(lhs.Vec)
		u.walkExpr(lhs.Index)
	}
	u.walkExpr(s.RHS)
}

func (u *usage) walkExpr(e ast.Expr) {
	switch v := e.(type) {
	case *ast.NameExpr:
		u.read[v.ID] = true
	case *ast.BinaryExpr:
		u.walkExpr(v.L)
		u.walkExpr(v.R)
	case *ast.CallExpr:
		for _, a := range v.Args {
			u.walkExpr(a)
		}
	case *ast.FieldExpr:
		if rec, ok := v.Rec.(*ast.NameExpr); ok {
			u.read[rec.ID] = true
			if u.fieldGet[rec.ID] == nil {
				u.fieldGet[rec.ID] = make(map[int]bool)
			}
			u.fieldGet[rec.ID][v.Field] = true
		} else {
			u.walkExpr(v.Rec)
		}
	case *ast.IndexExpr:
		u.walkExpr(v.Vec)
		u.walkExpr(v.Index)
	}
}
