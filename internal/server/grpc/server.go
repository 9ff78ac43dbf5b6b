package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/rzbill/rocketspeed/internal/runtime"
	logpkg "github.com/rzbill/rocketspeed/pkg/log"
)

// Server owns the grpc server instance and the Runtime it fronts.
type Server struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	grpc   *grpc.Server
	lis    net.Listener
}

// New constructs a Server and registers the Admin service.
func New(rt *runtime.Runtime, opts ...grpc.ServerOption) *Server {
	s := &Server{rt: rt, logger: rt.Logger().WithComponent("grpc"), grpc: grpc.NewServer(opts...)}
	s.grpc.RegisterService(&adminServiceDesc, &adminSvc{rt: rt})
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
