package main

import "burstq/cmd"

func main() {
	cmd.Execute()
}
