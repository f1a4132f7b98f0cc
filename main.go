package main

import "github.com/kozaktomas/lab-access/cmd"

func main() {
	cmd.Execute()
}
