package main

import "github.com/involk-secure-1609/lant/cmd"

func main() {
	cmd.Execute()
}
