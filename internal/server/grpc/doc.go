// Package grpcserver is the control-plane surface beside the raw stream
// multiplexer: health, namespace listing, shard topology, and the backlog
// round-trip, served over grpc. The Admin service is declared by hand via
// grpc.ServiceDesc with the rpcjson codec, so there is no generated stub
// layer between the handlers and the Runtime.
package grpcserver
