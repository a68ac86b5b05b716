package main

import "github.com/vietddude/buildforge/internal/cli"

func main() {
	cli.Execute()
}
