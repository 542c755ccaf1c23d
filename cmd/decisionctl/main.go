package main

import (
	"fmt"
	"os"

	"github.com/anakin-skynnet/payment-analysis-sub000/cmd/decisionctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
