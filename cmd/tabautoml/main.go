package main

import "github.com/YuminosukeSato/tabautoml/internal/cli"

func main() {
	cli.Execute()
}
