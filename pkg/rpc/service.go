package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// Procedure builds "/service/method".
func Procedure(service, method string) string {
	return "/" + service + "/" + method
}

// Service collects the unary procedures of one service under its path
// prefix, the way generated NewXServiceHandler constructors do.
type Service struct {
	name string
	mux  *http.ServeMux
	opts []connect.HandlerOption
}

// NewService starts a service. opts apply to every procedure after the JSON
// codecs.
func NewService(name string, opts ...connect.HandlerOption) *Service {
	return &Service{
		name: name,
		mux:  http.NewServeMux(),
		opts: append([]connect.HandlerOption{HandlerOptions()}, opts...),
	}
}

// Handle mounts one unary method.
func Handle[Req, Res any](s *Service, method string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error)) {
	procedure := Procedure(s.name, method)
	s.mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, s.opts...))
}

// Handler returns the path prefix and handler to mount on a mux.
func (s *Service) Handler() (string, http.Handler) {
	return "/" + s.name + "/", s.mux
}
