package main

import (
	"os"

	"github.com/simonhull/quill/internal/commands"
	"github.com/simonhull/quill/output"
)

func main() {
	if err := commands.Execute(); err != nil {
		output.Error(err.Error())
		os.Exit(1)
	}
}
