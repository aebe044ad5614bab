// Package launcher runs the recorder-launcher process.
//
// It loads settings, wires the record store, the backend supervisor and the
// bridge service, serves the bridge over gRPC and optionally exposes metrics.
// It refuses to start while recorder-provision is rewriting the resources directory.
// On shutdown the backend is stopped before the server.
package launcher
