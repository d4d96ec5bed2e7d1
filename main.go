package main

import "telecopy/cmd"

func main() {
	cmd.Execute()
}
