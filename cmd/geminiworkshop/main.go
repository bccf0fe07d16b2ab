package main

import "github.com/diogo/geminiworkshop/internal/commands"

func main() {
	commands.Execute()
}
