package main

import "github.com/josephgoksu/taskmail/cmd"

func main() {
	cmd.Execute()
}
