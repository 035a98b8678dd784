package grpc

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Claims is the bearer-token payload this service trusts: a caller is
// scoped to one namespace, with an optional admin role that
// CreateNamespace requires.
type Claims struct {
	Namespace string   `json:"namespace"`
	Roles     []string `json:"roles"`
	jwt.RegisteredClaims
}

type claimsContextKey struct{}

// ClaimsFromContext retrieves the authenticated caller's claims, if
// auth is enabled; ok is false when auth is disabled or absent.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// authInterceptor builds a unary interceptor that validates an HS256
// bearer token on every call when secret is non-empty, matching
// the teacher's REST middleware.AuthMiddleware shared-secret check
// adapted to gRPC's per-call metadata instead of HTTP headers. An
// empty secret disables authentication entirely, for local
// development.
func authInterceptor(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if secret == "" {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing request metadata")
		}
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization metadata")
		}

		parts := strings.SplitN(values[0], " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization metadata format")
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
		}

		if info.FullMethod == "/vamana.VectorDB/CreateNamespace" && !hasRole(claims.Roles, "admin") {
			return nil, status.Error(codes.PermissionDenied, "admin role required")
		}

		ctx = context.WithValue(ctx, claimsContextKey{}, claims)
		return handler(ctx, req)
	}
}

// GenerateToken creates a bearer token for a namespace-scoped caller,
// for test fixtures and local development — mirrors the teacher
// REST middleware's GenerateToken helper.
func GenerateToken(namespace string, roles []string, secret string) (string, error) {
	claims := &Claims{
		Namespace: namespace,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "vamana",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
