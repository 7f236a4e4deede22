package main

import "tws/cmd"

func main() {
	cmd.Execute()
}
