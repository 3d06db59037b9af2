package main

import "github.com/jmehdipour/clinic-notify/cmd"

func main() {
	cmd.Execute()
}
