package main

import "github.com/intheknowyyc/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
