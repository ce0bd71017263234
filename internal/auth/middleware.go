package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"

	"moviepicker/internal/logging"
	"moviepicker/internal/utils"
)

const (
	ModeAuth0 = "auth0"
	ModeLocal = "local"
)

var ErrNoUser = errors.New("no authenticated user in context")

// User is the authenticated identity behind a request.
type User struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// CustomClaims contains custom data we want to extract from the token.
type CustomClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Validate accepts any email and name; the registered claims carry the checks.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

type localUserKey struct{}

func NewMiddleware(domain, audience string) (*jwtmiddleware.JWTMiddleware, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT validator: %w", err)
	}

	return jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(unauthorized),
	), nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected request token")
	utils.RespondError(w, "Invalid or missing token", "unauthorized", http.StatusUnauthorized)
}

func RequireAuth(middleware *jwtmiddleware.JWTMiddleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return middleware.CheckJWT(next)
	}
}

// LocalUser authenticates every request as the single configured user. It is
// meant for personal deployments behind a trusted network.
func LocalUser(subject string) func(http.Handler) http.Handler {
	user := &User{Subject: subject, Name: subject}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), localUserKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Middleware returns the authentication middleware for mode.
func Middleware(mode, auth0Domain, auth0Audience, localSubject string) (func(http.Handler) http.Handler, error) {
	switch mode {
	case ModeLocal:
		return LocalUser(localSubject), nil
	case ModeAuth0:
		mw, err := NewMiddleware(auth0Domain, auth0Audience)
		if err != nil {
			return nil, err
		}
		return RequireAuth(mw), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

func GetUserFromContext(ctx context.Context) (*User, error) {
	if user, ok := ctx.Value(localUserKey{}).(*User); ok {
		return user, nil
	}

	claims, ok := ctx.Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	if !ok {
		return nil, ErrNoUser
	}

	customClaims, ok := claims.CustomClaims.(*CustomClaims)
	if !ok {
		return nil, fmt.Errorf("invalid custom claims format")
	}

	return &User{
		Subject: claims.RegisteredClaims.Subject,
		Email:   customClaims.Email,
		Name:    customClaims.Name,
	}, nil
}
