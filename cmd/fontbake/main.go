package main

import "fontbake/internal/cli"

func main() {
	cli.Execute()
}
