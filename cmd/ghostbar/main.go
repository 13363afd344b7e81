// Command ghostbar asks a vision model about what is on your screen.
package main

import "github.com/diogo/ghostbar/internal/commands"

func main() {
	commands.Execute()
}
