package main

import "github.com/forPelevin/revoice/internal/cli"

func main() {
	cli.Main()
}
