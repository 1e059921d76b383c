package main

import "moodcanvas/internal/cli"

func main() {
	cli.Execute()
}
