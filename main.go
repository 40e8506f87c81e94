package main

import "github.com/kozaktomas/pose-match/cmd"

func main() {
	cmd.Execute()
}
