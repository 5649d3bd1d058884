package domain

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/hilthontt/cheahlytics/internal/infrastructure/validate"
)

// Codes are drawn from [0, maxApplicationCode).
const maxApplicationCode = 10000

var (
	ErrApplicationNotFound  = errors.New("application not found")
	ErrTrackingCodeMismatch = errors.New("tracking code does not match application")
	ErrForbidden            = errors.New("not authorized")

	codeRange = big.NewInt(maxApplicationCode)
)

// Application is a website registered by a user. Code is assigned once at
// creation and never changes.
type Application struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	URL       string    `gorm:"type:varchar(2048);not null;index" json:"url"`
	Code      int       `gorm:"not null;<-:create" json:"-"`
	UserID    int64     `gorm:"not null;index" json:"userId"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`

	Events []Event `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Application) TableName() string {
	return "registered_applications"
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *Application) error
	GetByID(ctx context.Context, id int64) (*Application, error)
	ListByUser(ctx context.Context, userID int64) ([]Application, error)
	Update(ctx context.Context, app *Application) error
	// Delete removes the application together with its events.
	Delete(ctx context.Context, id int64) error
}

func NewApplication(owner *User, name, url string) (*Application, error) {
	if owner == nil {
		return nil, ErrUserNotFound
	}

	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if err := validateApplication(name, url); err != nil {
		return nil, err
	}

	code, err := generateApplicationCode()
	if err != nil {
		return nil, err
	}

	return &Application{
		Name:   name,
		URL:    url,
		Code:   code,
		UserID: owner.ID,
	}, nil
}

// Rename changes the mutable attributes. ID and Code are left alone.
func (a *Application) Rename(name, url string) error {
	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if err := validateApplication(name, url); err != nil {
		return err
	}

	a.Name = name
	a.URL = url
	return nil
}

func (a *Application) TrackingCode() string {
	return EncodeTrackingCode(a.ID, a.Code)
}

// CanManage reports whether user owns app.
func CanManage(user *User, app *Application) bool {
	if user == nil || app == nil {
		return false
	}
	return app.UserID == user.ID
}

func validateApplication(name, url string) error {
	errs := validate.Errors{}
	errs.Check("name", name, validate.Required(), validate.MaxLength(255))
	errs.Check("url", url, validate.Required(), validate.MaxLength(2048), validate.NoSpaces(), validate.Host())
	return newValidationError("registered application", errs)
}

func generateApplicationCode() (int, error) {
	n, err := rand.Int(rand.Reader, codeRange)
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
