package utils

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/cheahlytics/internal/domain"
)

var ErrInvalidID = errors.New("invalid id")

type currentUserKey struct{}

func WithCurrentUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, currentUserKey{}, user)
}

// CurrentUser returns the signed-in user, or nil.
func CurrentUser(r *http.Request) *domain.User {
	user, _ := r.Context().Value(currentUserKey{}).(*domain.User)
	return user
}

// IDParam parses a positive integer route parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
