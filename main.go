package main

import "github.com/douhashi/kobito/cmd"

func main() {
	cmd.Execute()
}
