package main

import "github.com/zjrosen/switchyard/cmd"

func main() {
	cmd.Execute()
}
