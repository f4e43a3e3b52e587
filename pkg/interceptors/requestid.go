package interceptors

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

const maxRequestIDLength = 128

// NewRequestIDInterceptor propagates the request ID header, generating one
// when the client sent none, and echoes it on the response.
func NewRequestIDInterceptor(header string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			id := req.Header().Get(header)
			if id == "" || len(id) > maxRequestIDLength {
				id = uuid.NewString()
			}
			ctx = context.WithValue(ctx, requestIDKey, id)

			resp, err := next(ctx, req)
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					connectErr.Meta().Set(header, id)
				}
				return resp, err
			}
			resp.Header().Set(header, id)
			return resp, nil
		}
	}
}

// GetRequestIDFromContext returns the ID assigned to the current call.
func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
