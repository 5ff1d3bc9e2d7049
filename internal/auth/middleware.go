package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"ms-events/internal/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

const (
	ModeOIDC     = "oidc"
	ModeInsecure = "insecure"
	ModeDisabled = "disabled"
)

// Verifier turns a raw bearer token into the caller's subject.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (string, error)
}

type OIDCVerifier struct {
	Verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's keys. The client id is not checked.
func NewOIDCVerifier(ctx context.Context, issuer string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		Verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	idToken, err := v.Verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", err
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Sub == "" {
		return "", errors.New("subject claim not found in token")
	}
	return claims.Sub, nil
}

// InsecureVerifier trusts the token's subject without checking the signature.
// Local development only.
type InsecureVerifier struct{}

func (InsecureVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	return ExtractUserIDFromJWT(rawToken)
}

// NewVerifier builds the verifier for mode. Disabled returns nil.
func NewVerifier(ctx context.Context, mode, issuer string) (Verifier, error) {
	switch mode {
	case ModeOIDC:
		if issuer == "" {
			return nil, errors.New("OIDC_ISSUER is required when AUTH_MODE=oidc")
		}
		v, err := NewOIDCVerifier(ctx, issuer)
		if err != nil {
			return nil, err
		}
		return v, nil
	case ModeInsecure:
		return InsecureVerifier{}, nil
	case ModeDisabled:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

// Middleware rejects requests without a valid bearer token and stores the
// subject in the request context. A nil verifier lets every request through.
func Middleware(verifier Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("AUTH_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			sub, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("AUTH_REJECTED", fmt.Sprintf("%s %s: invalid token: %v", r.Method, r.URL.Path, err))
				http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), sub)))
		})
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}
