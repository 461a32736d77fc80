package main

import (
	"github.com/aevrHQ/ui/cmd"
)

func main() {
	cmd.Execute()
}
