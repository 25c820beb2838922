package main

import "feedqueue/internal/interfaces/cli"

func main() {
	cli.Execute()
}
