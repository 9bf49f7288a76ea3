package main

import "github.com/audiolibrelab/voxstream/cmd"

func main() {
	cmd.Execute()
}
