// Package rpcjson registers a JSON encoding.Codec with grpc under the
// "json" content-subtype, letting services declared by hand through
// grpc.ServiceDesc exchange plain structs without generated protobuf
// stubs. Importing the package is enough to register the codec on both
// the server and the client side; clients additionally select it per
// call with grpc.CallContentSubtype(rpcjson.Name).
package rpcjson
