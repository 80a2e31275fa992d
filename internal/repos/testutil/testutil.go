package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}

		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			dbErr = err
			return
		}

		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			dbErr = err
			return
		}

		if err := db.AutoMigrate(
			&types.User{},
			&types.UserToken{},
			&types.BusinessSettings{},
			&types.Contract{},
			&types.EmailLog{},
		); err != nil {
			dbErr = err
			return
		}
	})

	if errors.Is(dbErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return db
}

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     fmt.Sprintf("performer-%s@test.local", uuid.NewString()[:8]),
		Password:  "pw",
		FirstName: "Pat",
		LastName:  "Performer",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedContract(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, status string) *types.Contract {
	tb.Helper()
	c := &types.Contract{
		UserID:         userID,
		ContractNumber: fmt.Sprintf("CN-%s", uuid.NewString()[:8]),
		ClientName:     "Casey Client",
		ClientEmail:    "casey@test.local",
		EventDate:      time.Now().Add(30 * 24 * time.Hour),
		StartTime:      "19:00",
		EndTime:        "23:00",
		Venue:          "The Old Hall",
		Fee:            450,
		Deposit:        100,
		Status:         status,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed contract: %v", err)
	}
	return c
}

func CleanupContract(tb testing.TB, tx *gorm.DB, id uint) {
	tb.Helper()
	tb.Cleanup(func() {
		tx.Where("contract_id = ?", id).Delete(&types.EmailLog{})
		tx.Delete(&types.Contract{}, id)
	})
}
