package main

import "github.com/agentic-research/ranger/cmd"

func main() {
	cmd.Execute()
}
