package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
)

type contextKey struct{}

var actorKey = contextKey{}

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}

// AuthMiddleware rejects requests without a valid bearer identity token and
// stores the actor in the request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "authorization header missing")
				return
			}

			token, ok := bearerToken(authHeader)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			actor, err := ParseToken(secret, token)
			if err != nil {
				slog.Warn("invalid identity token", "error", err)
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// OptionalAuth attaches the actor when the request carries a valid bearer
// token and serves it anonymously otherwise.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			actor, err := ParseToken(secret, token)
			if err != nil {
				slog.Warn("ignoring invalid identity token on public route", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireRole lets through only actors holding one of roles. It must run
// after AuthMiddleware.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "user not authenticated")
				return
			}
			for _, role := range roles {
				if actor.Is(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			slog.Warn("role check failed", "uid", actor.UID, "role", actor.Role, "required", roles)
			writeAuthError(w, http.StatusForbidden, "forbidden")
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
