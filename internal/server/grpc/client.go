package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rzbill/rocketspeed/internal/rpcjson"
)

// AdminClient invokes the Admin service over an existing connection,
// selecting the rpcjson codec per call so the peer decodes the plain
// structs this package declares.
type AdminClient struct {
	conn *grpc.ClientConn
}

// Dial connects to target with the json codec and no transport security;
// the control-plane listener is expected to sit behind the same trust
// boundary as the data plane.
func Dial(target string) (*AdminClient, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpcjson.Name)),
	)
	if err != nil {
		return nil, err
	}
	return &AdminClient{conn: conn}, nil
}

// NewAdminClient wraps an already-dialed connection. Callers dialing
// their own conn must pass grpc.CallContentSubtype(rpcjson.Name) either
// as a default call option or rely on this wrapper's per-call option.
func NewAdminClient(conn *grpc.ClientConn) *AdminClient { return &AdminClient{conn: conn} }

// Close closes the underlying connection.
func (c *AdminClient) Close() error { return c.conn.Close() }

func (c *AdminClient) invoke(ctx context.Context, method string, req, resp interface{}) error {
	return c.conn.Invoke(ctx, "/"+AdminService+"/"+method, req, resp, grpc.CallContentSubtype(rpcjson.Name))
}

// Health reports whether the runtime is serving.
func (c *AdminClient) Health(ctx context.Context) (*HealthResponse, error) {
	resp := new(HealthResponse)
	if err := c.invoke(ctx, "Health", &HealthRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Namespaces lists every namespace on record.
func (c *AdminClient) Namespaces(ctx context.Context) (*NamespacesResponse, error) {
	resp := new(NamespacesResponse)
	if err := c.invoke(ctx, "Namespaces", &NamespacesRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Topology reports the router's current shard topology.
func (c *AdminClient) Topology(ctx context.Context) (*TopologyResponse, error) {
	resp := new(TopologyResponse)
	if err := c.invoke(ctx, "Topology", &TopologyRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Backlog answers whether data exists in the requested seqno range.
func (c *AdminClient) Backlog(ctx context.Context, req *BacklogRequest) (*BacklogResponse, error) {
	resp := new(BacklogResponse)
	if err := c.invoke(ctx, "Backlog", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
