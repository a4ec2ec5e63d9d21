package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/idtoken"
)

// validateToken is replaced in tests.
var validateToken func(ctx context.Context, token, audience string) (*idtoken.Payload, error) = idtoken.Validate

// pushAuthError carries the response for a rejected push request.
type pushAuthError struct {
	status int
	reason string
	err    error
}

func (e *pushAuthError) Error() string {
	if e.err != nil {
		return e.reason + ": " + e.err.Error()
	}
	return e.reason
}

func (e *pushAuthError) Unwrap() error { return e.err }

func unauthorized(reason string, err error) *pushAuthError {
	return &pushAuthError{status: http.StatusUnauthorized, reason: reason, err: err}
}

func forbidden(reason string) *pushAuthError {
	return &pushAuthError{status: http.StatusForbidden, reason: reason}
}

// pushIdentity is what a verified push token tells us about the sender.
type pushIdentity struct {
	email   string
	subject string
	expires time.Time
}

// PubSubAuthMiddleware rejects push requests whose OIDC token was not minted
// for audience by the expectedEmail service account. With isLocalDev set
// (emulator in use) every request passes.
func PubSubAuthMiddleware(isLocalDev bool, audience, expectedEmail string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if isLocalDev {
			// The emulator does not sign push requests.
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.Debug().Str("path", r.URL.Path).Msg("Pub/Sub push authentication skipped for emulator")
				next.ServeHTTP(w, r)
			})
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if audience == "" || expectedEmail == "" {
				logger.Error().Msg("Pub/Sub push authentication needs PUBSUB_PUSH_AUDIENCE and PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL; denying request")
				http.Error(w, "Configuration error: audience or email not set", http.StatusInternalServerError)
				return
			}

			id, err := verifyPushToken(r.Context(), r.Header.Get("Authorization"), audience, expectedEmail)
			if err != nil {
				var aerr *pushAuthError
				if !errors.As(err, &aerr) {
					aerr = unauthorized("invalid token", err)
				}
				logger.Warn().Err(err).
					Str("path", r.URL.Path).
					Int("status", aerr.status).
					Msg("Rejected Pub/Sub push request")
				http.Error(w, http.StatusText(aerr.status)+": "+aerr.reason, aerr.status)
				return
			}

			logger.Info().
				Str("path", r.URL.Path).
				Str("email", id.email).
				Str("subject", id.subject).
				Time("tokenExpires", id.expires).
				Msg("Authenticated Pub/Sub push request")
			next.ServeHTTP(w, r)
		})
	}
}

// verifyPushToken validates the bearer token in header and checks its email
// claims against expectedEmail.
func verifyPushToken(ctx context.Context, header, audience, expectedEmail string) (*pushIdentity, error) {
	if header == "" {
		return nil, unauthorized("missing authorization header", nil)
	}
	token, ok := bearerToken(header)
	if !ok {
		return nil, unauthorized("malformed authorization header", nil)
	}

	payload, err := validateToken(ctx, token, audience)
	if err != nil {
		return nil, unauthorized("invalid token", err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, forbidden("invalid email claim in token")
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, forbidden("token email is not verified")
	}
	if email != expectedEmail {
		return nil, forbidden("token email " + email + " does not match expected service account")
	}

	return &pushIdentity{
		email:   email,
		subject: payload.Subject,
		expires: time.Unix(payload.Expires, 0),
	}, nil
}

// bearerToken extracts the credentials from an "Authorization: Bearer <token>"
// header value. The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, " ") {
		return "", false
	}
	return token, true
}
