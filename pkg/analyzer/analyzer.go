// Package analyzer reports misuse of pending channel operations: started
// operations whose handle is dropped, Select calls without cases, and the
// same operation handed to one Select twice.
package analyzer

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// ChannelPkg is the import path of the checked package.
const ChannelPkg = "github.com/OCAP2/csp/pkg/channel"

// Analyzer is the exported [analysis.Analyzer] for csplint.
//
// Usage:
//
//	go vet -vettool=$(which csplint) ./...
var Analyzer = &analysis.Analyzer{
	Name:     "csplint",
	Doc:      "report discarded pending channel operations and malformed Select calls",
	Run:      run,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
}

func run(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	filter := []ast.Node{
		(*ast.ExprStmt)(nil),
		(*ast.CallExpr)(nil),
	}
	insp.Preorder(filter, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.ExprStmt:
			call, ok := n.X.(*ast.CallExpr)
			if !ok {
				return
			}
			if name, ok := startMethod(pass, call); ok {
				pass.Reportf(call.Pos(),
					"csplint: result of %s discarded; the operation stays queued until the channel closes",
					name)
			}
		case *ast.CallExpr:
			if !isSelect(pass, n) {
				return
			}
			checkSelect(pass, n)
		}
	})
	return nil, nil
}

// startMethod reports whether call is (*channel.Channel[T]).StartPush or
// StartPull.
func startMethod(pass *analysis.Pass, call *ast.CallExpr) (string, bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return "", false
	}
	if sel.Sel.Name != "StartPush" && sel.Sel.Name != "StartPull" {
		return "", false
	}
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok {
		return "", false
	}
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return "", false
	}
	if !isChannelType(sig.Recv().Type()) {
		return "", false
	}
	return sel.Sel.Name, true
}

func isChannelType(t types.Type) bool {
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Origin().Obj()
	return obj.Name() == "Channel" && obj.Pkg() != nil && obj.Pkg().Path() == ChannelPkg
}

func isSelect(pass *analysis.Pass, call *ast.CallExpr) bool {
	var id *ast.Ident
	switch fun := call.Fun.(type) {
	case *ast.SelectorExpr:
		id = fun.Sel
	case *ast.Ident:
		id = fun
	default:
		return false
	}
	fn, ok := pass.TypesInfo.Uses[id].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}
	return fn.Name() == "Select" && fn.Pkg().Path() == ChannelPkg
}

func checkSelect(pass *analysis.Pass, call *ast.CallExpr) {
	// The first argument is the context.
	if len(call.Args) <= 1 {
		pass.Reportf(call.Pos(), "csplint: Select without cases always fails with ErrNoCases")
		return
	}
	if call.Ellipsis.IsValid() {
		return
	}

	seen := make(map[types.Object]bool)
	for _, arg := range call.Args[1:] {
		id, ok := ast.Unparen(arg).(*ast.Ident)
		if !ok {
			continue
		}
		obj := pass.TypesInfo.Uses[id]
		if obj == nil {
			continue
		}
		if seen[obj] {
			pass.Reportf(arg.Pos(), "csplint: %s passed to Select more than once", id.Name)
			continue
		}
		seen[obj] = true
	}
}
