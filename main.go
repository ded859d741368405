package main

import "Toonbeat/cmd"

func main() {
	cmd.Execute()
}
