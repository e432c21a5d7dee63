package main

import (
	"github.com/wii-tools/wiivol/internal/cmd"
)

func main() {
	cmd.Execute()
}
