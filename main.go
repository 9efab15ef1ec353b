package main

import "chrinstaller/chrinstaller/cmd"

func main() {
	cmd.Execute()
}
