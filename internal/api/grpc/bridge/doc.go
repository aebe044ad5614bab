// Package bridge exposes the bridge service over gRPC.
//
// Messages are protobuf well-known types, so the service descriptor is
// declared here directly instead of being generated from a .proto file.
package bridge
