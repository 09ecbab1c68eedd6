package main

import "github.com/ravgrowth/ravbot/cmd"

func main() {
	cmd.Execute()
}
