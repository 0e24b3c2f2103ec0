package main

import "github.com/kiesman99/deepzoom/cmd"

func main() {
	cmd.Execute()
}
