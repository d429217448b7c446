package main

import "github.com/oshokin/iis-server-builder/cmd/iis-builder/cmd"

func main() {
	cmd.Execute()
}
