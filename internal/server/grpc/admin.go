package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rzbill/rocketspeed/internal/router"
	"github.com/rzbill/rocketspeed/internal/runtime"
	"github.com/rzbill/rocketspeed/internal/wire"
)

// AdminService is the full method path prefix of the Admin service.
const AdminService = "rocketspeed.v1.Admin"

// HealthRequest has no fields.
type HealthRequest struct{}

// HealthResponse reports "ok" or "not_serving".
type HealthResponse struct {
	Status string `json:"status"`
}

// NamespacesRequest has no fields.
type NamespacesRequest struct{}

// NamespacesResponse lists every namespace on record.
type NamespacesResponse struct {
	Namespaces []string `json:"namespaces"`
}

// TopologyRequest has no fields.
type TopologyRequest struct{}

// TopologyResponse reports the router's current shard topology.
type TopologyResponse struct {
	NumShards uint32   `json:"numShards"`
	Version   uint64   `json:"version"`
	Hosts     []string `json:"hosts,omitempty"`
}

// BacklogRequest asks whether data exists for (namespace, topic) in the
// (prevSeqno, nextSeqno] range.
type BacklogRequest struct {
	Namespace string `json:"namespace"`
	Topic     string `json:"topic"`
	PrevSeqno uint64 `json:"prevSeqno"`
	NextSeqno uint64 `json:"nextSeqno"`
}

// BacklogResponse answers a BacklogRequest.
type BacklogResponse struct {
	Found bool `json:"found"`
}

// AdminServer is the handler set behind the Admin service.
type AdminServer interface {
	Health(context.Context, *HealthRequest) (*HealthResponse, error)
	Namespaces(context.Context, *NamespacesRequest) (*NamespacesResponse, error)
	Topology(context.Context, *TopologyRequest) (*TopologyResponse, error)
	Backlog(context.Context, *BacklogRequest) (*BacklogResponse, error)
}

type adminSvc struct {
	rt *runtime.Runtime
}

func (a *adminSvc) Health(ctx context.Context, _ *HealthRequest) (*HealthResponse, error) {
	if err := a.rt.CheckHealth(ctx); err != nil {
		return &HealthResponse{Status: "not_serving"}, nil
	}
	return &HealthResponse{Status: "ok"}, nil
}

func (a *adminSvc) Namespaces(ctx context.Context, _ *NamespacesRequest) (*NamespacesResponse, error) {
	metas, err := a.rt.Namespaces()
	if err != nil {
		return nil, err
	}
	resp := &NamespacesResponse{}
	for _, m := range metas {
		resp.Namespaces = append(resp.Namespaces, m.Name)
	}
	return resp, nil
}

func (a *adminSvc) Topology(ctx context.Context, _ *TopologyRequest) (*TopologyResponse, error) {
	resp := &TopologyResponse{Version: a.rt.Router().Version()}
	if sr, ok := a.rt.Router().(*router.StaticRouter); ok {
		resp.NumShards = sr.NumShards()
		resp.Hosts = sr.Hosts()
	}
	return resp, nil
}

func (a *adminSvc) Backlog(ctx context.Context, req *BacklogRequest) (*BacklogResponse, error) {
	result := a.rt.BacklogQuery(req.Namespace, req.Topic, req.PrevSeqno, req.NextSeqno)
	return &BacklogResponse{Found: result == wire.BacklogFound}, nil
}

func unaryHandler[Req any, Resp any](
	fullMethod string,
	call func(AdminServer, context.Context, *Req) (Resp, error),
) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AdminServer), ctx, req.(*Req))
		})
	}
}

// adminServiceDesc is what protoc would have generated, written out by
// hand since the messages are plain JSON structs.
var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminService,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Health", Handler: unaryHandler("/"+AdminService+"/Health",
			func(s AdminServer, ctx context.Context, req *HealthRequest) (*HealthResponse, error) {
				return s.Health(ctx, req)
			})},
		{MethodName: "Namespaces", Handler: unaryHandler("/"+AdminService+"/Namespaces",
			func(s AdminServer, ctx context.Context, req *NamespacesRequest) (*NamespacesResponse, error) {
				return s.Namespaces(ctx, req)
			})},
		{MethodName: "Topology", Handler: unaryHandler("/"+AdminService+"/Topology",
			func(s AdminServer, ctx context.Context, req *TopologyRequest) (*TopologyResponse, error) {
				return s.Topology(ctx, req)
			})},
		{MethodName: "Backlog", Handler: unaryHandler("/"+AdminService+"/Backlog",
			func(s AdminServer, ctx context.Context, req *BacklogRequest) (*BacklogResponse, error) {
				return s.Backlog(ctx, req)
			})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rocketspeed/v1/admin",
}
