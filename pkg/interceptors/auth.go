package interceptors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	userEmailKey contextKey = "user_email"
	requestIDKey contextKey = "request_id"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid access token")
)

// AuthConfig describes the tokens the identity provider issues.
type AuthConfig struct {
	Secret   []byte
	Audience string
	Issuer   string
	// Public procedures skip authentication.
	Public []string
}

// Claims are the access token fields the service reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthInterceptor verifies HS256 access tokens and stores the subject in the
// request context.
type AuthInterceptor struct {
	parser *jwt.Parser
	secret []byte
	public map[string]struct{}
}

// NewAuthInterceptor creates an auth interceptor. An empty secret rejects
// every protected call.
func NewAuthInterceptor(cfg AuthConfig) *AuthInterceptor {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	public := make(map[string]struct{}, len(cfg.Public))
	for _, p := range cfg.Public {
		public[p] = struct{}{}
	}

	return &AuthInterceptor{
		parser: jwt.NewParser(opts...),
		secret: cfg.Secret,
		public: public,
	}
}

// WrapUnary implements connect.Interceptor.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if _, ok := i.public[req.Spec().Procedure]; ok {
			return next(ctx, req)
		}
		ctx, err := i.authenticate(ctx, req.Header())
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if _, ok := i.public[conn.Spec().Procedure]; ok {
			return next(ctx, conn)
		}
		ctx, err := i.authenticate(ctx, conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

func (i *AuthInterceptor) authenticate(ctx context.Context, header http.Header) (context.Context, error) {
	raw, ok := bearerToken(header)
	if !ok {
		return ctx, connect.NewError(connect.CodeUnauthenticated, errMissingToken)
	}
	if len(i.secret) == 0 {
		return ctx, connect.NewError(connect.CodeUnauthenticated, errInvalidToken)
	}

	claims, err := i.verify(raw)
	if err != nil {
		return ctx, connect.NewError(connect.CodeUnauthenticated, errInvalidToken)
	}

	ctx = context.WithValue(ctx, userIDKey, claims.Subject)
	if claims.Email != "" {
		ctx = context.WithValue(ctx, userEmailKey, claims.Email)
	}
	return ctx, nil
}

func (i *AuthInterceptor) verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := i.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func bearerToken(header http.Header) (string, bool) {
	value := header.Get("Authorization")
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUserIDFromContext returns the authenticated subject.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// GetUserEmailFromContext returns the email claim, if the token carried one.
func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(userEmailKey).(string)
	return email, ok
}

// ContextWithUserID is used by tests and trusted internal callers.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
