package main

import "kinetic/cmd"

func main() {
	cmd.Execute()
}
