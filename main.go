package main

import "github.com/fintra/credvault/cmd"

func main() {
	cmd.Execute()
}
