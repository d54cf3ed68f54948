package main

import "bookrate/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
