package main

import "github.com/oshokin/recorder-launcher/cmd/recorder-bridge/cmd"

func main() {
	cmd.Execute()
}
