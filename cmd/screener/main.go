package main

import (
	"fmt"
	"os"

	"github.com/mwhitt/alphascreen/cmd/screener/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
