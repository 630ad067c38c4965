package main

import (
	"os"

	"github.com/KaramelBytes/vizeval-cli/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
