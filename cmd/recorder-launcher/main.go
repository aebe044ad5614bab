package main

import "github.com/oshokin/recorder-launcher/cmd/recorder-launcher/cmd"

func main() {
	cmd.Execute()
}
