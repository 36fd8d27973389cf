package rpc

import (
	"context"
	"strings"

	"github.com/Domenick1991/flightbooking/internal/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// AuthInterceptor attaches the caller identity to the context. Methods under a
// protected service prefix are rejected without a valid token; elsewhere the
// token is optional.
func AuthInterceptor(tokens *auth.TokenService, protectedPrefixes ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		header := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		protected := false
		for _, p := range protectedPrefixes {
			if strings.HasPrefix(info.FullMethod, p) {
				protected = true
				break
			}
		}

		if header != "" || protected {
			identity, err := tokens.ParseBearer(header)
			if err != nil {
				if protected {
					return nil, Error(err)
				}
			} else {
				ctx = auth.WithIdentity(ctx, identity)
			}
		}
		return handler(ctx, req)
	}
}

// RequireIdentity returns the caller identity set by AuthInterceptor.
func RequireIdentity(ctx context.Context) (auth.Identity, error) {
	identity, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Identity{}, Error(auth.ErrUnauthenticated)
	}
	return identity, nil
}
