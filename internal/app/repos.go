package app

import (
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/repos"
)

type Repos struct {
	User      repos.UserRepo
	UserToken repos.UserTokenRepo
	Settings  repos.SettingsRepo
	Contract  repos.ContractRepo
	EmailLog  repos.EmailLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:      repos.NewUserRepo(db, log),
		UserToken: repos.NewUserTokenRepo(db, log),
		Settings:  repos.NewSettingsRepo(db, log),
		Contract:  repos.NewContractRepo(db, log),
		EmailLog:  repos.NewEmailLogRepo(db, log),
	}
}
