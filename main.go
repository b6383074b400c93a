package main

import "github.com/fakeyudi/mirror/cmd"

func main() {
	cmd.Execute()
}
