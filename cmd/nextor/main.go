// Package main provides the entry point for the nextor CLI.
package main

import (
	"os"

	"github.com/MerijnSC/RAG-project/cmd/nextor/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
