package main

import "github.com/nidsdepoule/roadcore/cmd"

func main() {
	cmd.Execute()
}
