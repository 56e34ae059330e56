package main

import "github.com/peerquery/peerquery/cmd"

func main() {
	cmd.Execute()
}
