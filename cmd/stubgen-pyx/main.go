package main

import "github.com/jon-edward/stubgen-pyx/internal/cli"

func main() {
	cli.Execute()
}
