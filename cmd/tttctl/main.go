package main

import "github.com/mcoot/tictactoe-live/internal/cli"

func main() {
	cli.Execute()
}
