package main

import (
	"github.com/ColonelBlimp/keytrainer/cmd"
	"github.com/ColonelBlimp/keytrainer/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
