// Package main is the entry point for the zinv CLI.
package main

import "github.com/stockbridge/zinv/internal/cli"

func main() {
	cli.Execute()
}
