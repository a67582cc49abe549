package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"shgbook/internal/core"
	"shgbook/internal/log"
)

type contextKey string

const actorKey contextKey = "actor"

// UserLookup resolves an account uid to its stored profile.
type UserLookup interface {
	User(ctx context.Context, uid string) (core.User, error)
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware authenticates requests and stores the resulting actor.
type Middleware struct {
	verifier Verifier
	users    UserLookup
	logger   *log.Logger
	onError  ErrorWriter
}

// NewMiddleware creates the middleware. A nil onError writes a minimal JSON body.
func NewMiddleware(verifier Verifier, users UserLookup, logger *log.Logger, onError ErrorWriter) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	if onError == nil {
		onError = writeError
	}
	return &Middleware{
		verifier: verifier,
		users:    users,
		logger:   logger.WithComponent(log.ComponentAuth),
		onError:  onError,
	}
}

// RequireAuth rejects requests without a valid bearer token bound to an
// active user profile.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := m.Authenticate(r)
		if err != nil {
			m.logger.WarnContext(r.Context(), "Authentication failed",
				log.FieldPath, r.URL.Path,
				log.FieldError, core.Message(err))
			m.onError(w, r, err)
			return
		}
		logger := log.FromContext(r.Context()).With(log.FieldUser, actor.Name())
		ctx := log.NewContext(WithActor(r.Context(), actor), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate resolves the request's bearer token to an actor.
func (m *Middleware) Authenticate(r *http.Request) (core.Actor, error) {
	token, err := BearerToken(r)
	if err != nil {
		return core.Actor{}, err
	}
	uid, err := m.verifier.Verify(r.Context(), token)
	if err != nil {
		return core.Actor{}, err
	}
	user, err := m.users.User(r.Context(), uid)
	if errors.Is(err, core.ErrNotFound) {
		return core.Actor{}, core.Forbidden("no profile exists for this account")
	}
	if err != nil {
		return core.Actor{}, err
	}
	actor := core.ActorFor(user)
	if !actor.IsActive() {
		return core.Actor{}, core.Forbidden("your account is disabled")
	}
	return actor, nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", unauthenticated("missing authorization header", nil)
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", unauthenticated("invalid authorization header format", nil)
	}
	return token, nil
}

// WithActor returns ctx carrying actor.
func WithActor(ctx context.Context, actor core.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the authenticated actor, if any.
func ActorFrom(ctx context.Context) (core.Actor, bool) {
	a, ok := ctx.Value(actorKey).(core.Actor)
	return a, ok
}

func writeError(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusForbidden
	if errors.Is(err, ErrUnauthenticated) {
		status = http.StatusUnauthorized
	} else if k := core.KindOf(err); k == core.KindPersistence || k == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": core.Message(err)})
}
