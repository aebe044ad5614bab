// Package client implements the recorder-bridge commands.
//
// Each call connects to the launcher's bridge, invokes one channel and prints
// the reply as JSON. The run action can stay attached until the backend settles.
package client
