package main

import "github.com/mcoot/cubegame/internal/cli"

func main() {
	cli.Execute()
}
