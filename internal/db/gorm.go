package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/config"
)

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	User struct {
		GormForkedModel
		Email    string  `gorm:"unique;not null"`
		Password string  `gorm:"not null"`
		Token    *string `gorm:"uniqueIndex"`
	}

	Topic struct {
		GormForkedModel
		Name      string `gorm:"size:20;not null"`
		OwnerID   uint64 `gorm:"not null;index"`
		ShareCode string `gorm:"not null;uniqueIndex"`
	}

	// TopicMember rows make up a topic's member set. The composite key keeps
	// joins idempotent.
	TopicMember struct {
		TopicID   uint64 `gorm:"primaryKey;autoIncrement:false"`
		UserID    uint64 `gorm:"primaryKey;autoIncrement:false;index"`
		CreatedAt time.Time
	}

	Note struct {
		GormForkedModel
		Title   string  `gorm:"not null"`
		Content string  `gorm:"not null;default:''"`
		Color   string  `gorm:"not null;default:'yellow'"`
		X       float64 `gorm:"not null"`
		Y       float64 `gorm:"not null"`
		Width   float64 `gorm:"not null"`
		Height  float64 `gorm:"not null"`
		OwnerID uint64  `gorm:"not null;index"`
		TopicID *uint64 `gorm:"index"`
	}
)

var (
	Module = fx.Provide(
		NewGormClient,
	)
)

func NewGormClient(lc fx.Lifecycle, cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DBPath)
	default:
		dialector = postgres.Open(cfg.PostgresDSN())
	}

	gdb, err := Open(dialector, l)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return errors.Wrap(err, "get sql db")
			}
			l.Info("Closing database connection.")
			return sqlDB.Close()
		},
	})

	return gdb, nil
}

// Open connects through the given dialector and migrates the schema.
func Open(dialector gorm.Dialector, l *zap.Logger) (*gorm.DB, error) {
	newLogger := logger.New(zap.NewStdLog(l.Named("gorm")), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		Colorful:                  false,
		IgnoreRecordNotFoundError: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}

	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&User{}); err != nil {
		return errors.Wrap(err, "migrate user")
	}
	if err := gdb.AutoMigrate(&Topic{}); err != nil {
		return errors.Wrap(err, "migrate topic")
	}
	if err := gdb.AutoMigrate(&TopicMember{}); err != nil {
		return errors.Wrap(err, "migrate topic member")
	}
	if err := gdb.AutoMigrate(&Note{}); err != nil {
		return errors.Wrap(err, "migrate note")
	}
	return nil
}

// Ping checks the underlying connection; used by the readiness endpoint.
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return errors.Wrap(err, "get sql db")
	}
	return sqlDB.PingContext(ctx)
}
