package main

import "github.com/diogo/techtouch/internal/commands"

func main() {
	commands.Execute()
}
