package main

import "github.com/DavidIlie/claude-code-prometheus/cmd"

func main() {
	cmd.Execute()
}
