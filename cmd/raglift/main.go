package main

import "github.com/tomw/raglift/cmd/raglift/cmd"

func main() {
	cmd.Execute()
}
