package main

import (
	"github.com/regolith-ai/regolith/cmd"
)

func main() {
	cmd.Execute()
}
