package main

import (
	"os"

	"github.com/conneroisu/winforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
