package main

import "kb/internal/cli"

func main() {
	cli.Execute()
}
