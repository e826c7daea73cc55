package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"shareit/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	permBookingsRead      = "bookings:read"
	permBookingsWrite     = "bookings:write"
	clientKeyUnknown      = "unknown"
)

var (
	errMissingAPIKey    = errors.New("missing api key headers")
	errInvalidAPIKey    = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
)

// apiKeys validates API key pairs shared by the HTTP and gRPC surfaces.
type apiKeys struct {
	cfg     config.APIAuthConfig
	clients map[string]config.APIClientKey
}

func newAPIKeys(cfg config.APIAuthConfig) *apiKeys {
	m := make(map[string]config.APIClientKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		m[k.Key] = k
	}
	return &apiKeys{cfg: cfg, clients: m}
}

func (a *apiKeys) keyHeader() string {
	if h := strings.ToLower(strings.TrimSpace(a.cfg.HeaderAPIKey)); h != "" {
		return h
	}
	return apiKeyHeaderDefault
}

func (a *apiKeys) extraHeader() string {
	if h := strings.ToLower(strings.TrimSpace(a.cfg.HeaderExtra)); h != "" {
		return h
	}
	return apiExtraHeaderDefault
}

// authenticate checks the key pair and that the client holds required.
// An empty required permission or an empty permission list allows everything.
func (a *apiKeys) authenticate(apiKey, extra, required string) error {
	if apiKey == "" || extra == "" {
		return errMissingAPIKey
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return errInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errInvalidExtra
	}

	if required == "" || len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

type AuthInterceptor struct {
	keys    *apiKeys
	limiter *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		keys:    newAPIKeys(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if a.keys.cfg.Enabled {
			if err := a.checkAuth(ctx, info.FullMethod); err != nil {
				return nil, err
			}
		}
		if !a.limiter.allow(a.clientKey(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) checkAuth(ctx context.Context, fullMethod string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	err := a.keys.authenticate(
		first(md.Get(a.keys.keyHeader())),
		first(md.Get(a.keys.extraHeader())),
		requiredPermission(fullMethod),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Unauthenticated, err.Error())
	}
}

func requiredPermission(fullMethod string) string {
	switch fullMethod {
	case methodCreateBooking, methodApproveBooking:
		return permBookingsWrite
	case methodGetBooking, methodListBookings:
		return permBookingsRead
	default:
		return ""
	}
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if apiKey := first(md.Get(a.keys.keyHeader())); apiKey != "" {
		return apiKey
	}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
