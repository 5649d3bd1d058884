// Package applications manages the websites a user tracks.
package applications

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
)

const (
	defaultAuditLimit  = 100
	defaultAuditWindow = 24 * time.Hour
)

var ErrAuditLogDisabled = errors.New("audit log is not enabled")

var snippetTemplate = template.Must(template.New("snippet").Parse(
	`<script src="{{ .ScriptURL }}"></script>` + "\n" +
		`<script>Cheahlytics.record({{ .TrackingCode }}, "Pageview");</script>`,
))

// Dashboard is an application with its events grouped by name.
type Dashboard struct {
	Application *domain.Application `json:"application"`
	Groups      []domain.EventGroup `json:"events"`
	Total       int64               `json:"total"`
}

// Setup is what an owner pastes into their site.
type Setup struct {
	Application  *domain.Application `json:"application"`
	TrackingCode string              `json:"trackingCode"`
	ScriptURL    string              `json:"scriptUrl"`
	Snippet      string              `json:"snippet"`
}

// AuditQuery narrows the audit trail of one application. With an Outcome,
// entries between From and To are returned; otherwise the newest Limit.
type AuditQuery struct {
	Outcome domain.IngestionOutcome
	From    time.Time
	To      time.Time
	Limit   int
}

type ApplicationUseCase interface {
	List(ctx context.Context, user *domain.User) ([]domain.Application, error)
	Get(ctx context.Context, user *domain.User, id int64) (*Dashboard, error)
	// Authorize loads application id and checks that user owns it.
	Authorize(ctx context.Context, user *domain.User, id int64) (*domain.Application, error)
	Create(ctx context.Context, user *domain.User, name, url string) (*domain.Application, error)
	Update(ctx context.Context, user *domain.User, id int64, name, url string) (*domain.Application, error)
	Delete(ctx context.Context, user *domain.User, id int64) error
	Setup(ctx context.Context, user *domain.User, id int64) (*Setup, error)
	Audit(ctx context.Context, user *domain.User, id int64, query AuditQuery) ([]domain.IngestionAuditLog, error)
}

type Option func(*applicationUseCase)

func WithAuditLog(audit domain.IngestionAuditRepository) Option {
	return func(uc *applicationUseCase) {
		uc.audit = audit
	}
}

type applicationUseCase struct {
	applications domain.ApplicationRepository
	events       domain.EventRepository
	audit        domain.IngestionAuditRepository
	publicURL    string
	logger       logging.Logger
	now          func() time.Time
}

func NewApplicationUseCase(
	applications domain.ApplicationRepository,
	events domain.EventRepository,
	publicURL string,
	logger logging.Logger,
	opts ...Option,
) ApplicationUseCase {
	uc := &applicationUseCase{
		applications: applications,
		events:       events,
		publicURL:    strings.TrimRight(publicURL, "/"),
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *applicationUseCase) List(ctx context.Context, user *domain.User) ([]domain.Application, error) {
	if user == nil {
		return nil, domain.ErrForbidden
	}
	return uc.applications.ListByUser(ctx, user.ID)
}

func (uc *applicationUseCase) Authorize(ctx context.Context, user *domain.User, id int64) (*domain.Application, error) {
	app, err := uc.applications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !domain.CanManage(user, app) {
		extra := map[logging.ExtraKey]any{logging.ApplicationID: id}
		if user != nil {
			extra[logging.UserID] = user.ID
		}
		uc.logger.Warn(logging.General, logging.Management, "access to application denied", extra)
		return nil, domain.ErrForbidden
	}

	return app, nil
}

func (uc *applicationUseCase) Get(ctx context.Context, user *domain.User, id int64) (*Dashboard, error) {
	app, err := uc.Authorize(ctx, user, id)
	if err != nil {
		return nil, err
	}

	groups, err := uc.events.GroupByName(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to group events: %w", err)
	}

	total, err := uc.events.CountByApplication(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	return &Dashboard{
		Application: app,
		Groups:      groups,
		Total:       total,
	}, nil
}

func (uc *applicationUseCase) Create(ctx context.Context, user *domain.User, name, url string) (*domain.Application, error) {
	app, err := domain.NewApplication(user, name, url)
	if err != nil {
		return nil, err
	}

	if err := uc.applications.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	uc.logger.Info(logging.General, logging.Management, "application registered", map[logging.ExtraKey]any{
		logging.ApplicationID: app.ID,
		logging.UserID:        user.ID,
	})

	return app, nil
}

func (uc *applicationUseCase) Update(ctx context.Context, user *domain.User, id int64, name, url string) (*domain.Application, error) {
	app, err := uc.Authorize(ctx, user, id)
	if err != nil {
		return nil, err
	}

	if err := app.Rename(name, url); err != nil {
		return nil, err
	}

	if err := uc.applications.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}

	return app, nil
}

func (uc *applicationUseCase) Delete(ctx context.Context, user *domain.User, id int64) error {
	app, err := uc.Authorize(ctx, user, id)
	if err != nil {
		return err
	}

	if err := uc.applications.Delete(ctx, app.ID); err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}

	uc.logger.Info(logging.General, logging.Management, "application deleted", map[logging.ExtraKey]any{
		logging.ApplicationID: app.ID,
		logging.UserID:        user.ID,
	})

	return nil
}

func (uc *applicationUseCase) Setup(ctx context.Context, user *domain.User, id int64) (*Setup, error) {
	app, err := uc.Authorize(ctx, user, id)
	if err != nil {
		return nil, err
	}

	code := app.TrackingCode()
	scriptURL := uc.publicURL + "/cheahlytics.js"

	snippet, err := Snippet(scriptURL, code)
	if err != nil {
		return nil, fmt.Errorf("failed to render snippet: %w", err)
	}

	return &Setup{
		Application:  app,
		TrackingCode: code,
		ScriptURL:    scriptURL,
		Snippet:      snippet,
	}, nil
}

func (uc *applicationUseCase) Audit(ctx context.Context, user *domain.User, id int64, query AuditQuery) ([]domain.IngestionAuditLog, error) {
	app, err := uc.Authorize(ctx, user, id)
	if err != nil {
		return nil, err
	}

	if uc.audit == nil {
		return nil, ErrAuditLogDisabled
	}

	if query.Outcome == "" {
		limit := query.Limit
		if limit <= 0 {
			limit = defaultAuditLimit
		}
		return uc.audit.GetByApplicationID(ctx, app.ID, limit)
	}

	to := query.To
	if to.IsZero() {
		to = uc.now()
	}
	from := query.From
	if from.IsZero() {
		from = to.Add(-defaultAuditWindow)
	}

	return uc.audit.GetByOutcome(ctx, app.ID, query.Outcome, from, to)
}

// Snippet is the HTML an owner embeds to record a pageview. Both values are
// escaped for the context they land in.
func Snippet(scriptURL, trackingCode string) (string, error) {
	var b strings.Builder
	err := snippetTemplate.Execute(&b, struct {
		ScriptURL    string
		TrackingCode string
	}{scriptURL, trackingCode})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
