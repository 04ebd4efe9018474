// Command csplint runs the pending-operation analyzer as a standalone tool.
//
// Install:
//
//	go install github.com/OCAP2/csp/cmd/csplint@latest
//
// Usage:
//
//	go vet -vettool=$(which csplint) ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/OCAP2/csp/pkg/analyzer"
)

func main() {
	singlechecker.Main(analyzer.Analyzer)
}
