package repository

import (
	"context"
	"testing"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/persistence/dbtest"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	users  domain.UserRepository
	apps   domain.ApplicationRepository
	events domain.EventRepository
}

func newFixture(t *testing.T) (*gorm.DB, fixture) {
	t.Helper()

	gdb := dbtest.New(t)
	return gdb, fixture{
		users:  NewUserRepository(gdb),
		apps:   NewApplicationRepository(gdb),
		events: NewEventRepository(gdb),
	}
}

func (f fixture) user(t *testing.T, email string) *domain.User {
	t.Helper()

	u, err := domain.NewUser(email, "secret123")
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f fixture) app(t *testing.T, owner *domain.User, name, url string) *domain.Application {
	t.Helper()

	app, err := domain.NewApplication(owner, name, url)
	require.NoError(t, err)
	require.NoError(t, f.apps.Create(context.Background(), app))
	return app
}

func (f fixture) event(t *testing.T, app *domain.Application, name string) *domain.Event {
	t.Helper()

	ev, err := domain.NewEvent(app, name)
	require.NoError(t, err)
	require.NoError(t, f.events.Create(context.Background(), ev))
	return ev
}
