package main

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"strings"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/configs"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/env"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/hilthontt/cheahlytics/internal/persistence/db"
	"github.com/hilthontt/cheahlytics/internal/persistence/repository"
	"github.com/hilthontt/cheahlytics/internal/usecases/accounts"
	"gorm.io/gorm"
)

const (
	seedEmail    = "matt.cheah@gmail.com"
	seedPassword = "password"
	seedEvents   = 100
)

var (
	appNames   = []string{"Bitwolf", "Zoolab", "Sonair", "Tresom", "Voltsillam"}
	eventTypes = []string{"Pageview", "Contact Form Submission", "Ad Click", "Click to Call - Mobile", "Product Purchase"}
)

func main() {
	env.LoadDotEnv()

	cfg, err := configs.Load(configs.DetermineConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		AppName:  configs.ServiceName,
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})
	logger.Init()
	defer logger.Sync()

	gormDB, err := db.NewGormDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal(logging.Database, logging.Seed, "failed to open database", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer db.Close(gormDB)

	if err := db.AutoMigrate(gormDB); err != nil {
		logger.Fatal(logging.Database, logging.Migration, "failed to migrate database", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	if err := seed(context.Background(), gormDB, logger); err != nil {
		logger.Fatal(logging.Database, logging.Seed, "seeding failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}

func seed(ctx context.Context, gormDB *gorm.DB, logger logging.Logger) error {
	userRepository := repository.NewUserRepository(gormDB)
	applicationRepository := repository.NewApplicationRepository(gormDB)
	eventRepository := repository.NewEventRepository(gormDB)

	user, err := accounts.NewAccountUseCase(userRepository, logger).Register(ctx, seedEmail, seedPassword)
	if errors.Is(err, domain.ErrEmailTaken) {
		user, err = userRepository.GetByEmail(ctx, seedEmail)
	}
	if err != nil {
		return err
	}

	apps := make([]*domain.Application, 0, len(appNames))
	for _, name := range appNames {
		app, err := domain.NewApplication(user, name, strings.ToLower(name)+".com")
		if err != nil {
			return err
		}
		if err := applicationRepository.Create(ctx, app); err != nil {
			return err
		}
		apps = append(apps, app)
	}

	for range seedEvents {
		app := apps[rand.IntN(len(apps))]
		event, err := domain.NewEvent(app, eventTypes[rand.IntN(len(eventTypes))])
		if err != nil {
			return err
		}
		if err := eventRepository.Create(ctx, event); err != nil {
			return err
		}
	}

	logger.Info(logging.Database, logging.Seed, "database seeded", map[logging.ExtraKey]any{
		logging.UserID: user.ID,
		"applications": len(apps),
		"events":       seedEvents,
	})

	return nil
}
