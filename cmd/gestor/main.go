// Command gestor は部署・社員ストアを操作する運用 CLI です。
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
)

func main() {
	if err := newCLI(nil).execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func reportError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)

	var stepErr *org.StepError
	if errors.As(err, &stepErr) && stepErr.OperationID != "" {
		fmt.Fprintf(os.Stderr, "inspect with: gestor journal %s\n", stepErr.OperationID)
		if stepErr.Partial() {
			fmt.Fprintf(os.Stderr, "store left partially modified; applied steps: %v\n", stepErr.Applied)
			fmt.Fprintln(os.Stderr, "finish or clean up with: gestor department repair --help")
		}
	}
}
