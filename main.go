package main

import "github.com/seaquell/outpost/cmd"

func main() {
	cmd.Execute()
}
