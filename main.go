package main

import (
	"os"

	"aethersecure/commands"
)

var version = "dev"

func main() {
	os.Exit(commands.Execute(version))
}
