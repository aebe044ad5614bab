package main

import "github.com/oshokin/recorder-launcher/cmd/recorder-provision/cmd"

func main() {
	cmd.Execute()
}
