package app

import (
	"github.com/gigfolio/gigfolio-backend/internal/handlers"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Contract *handlers.ContractHandler
	Settings *handlers.SettingsHandler
	Sign     *handlers.SignHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:     handlers.NewAuthHandler(serviceset.Auth),
		Contract: handlers.NewContractHandler(log, serviceset.Contract, serviceset.Settings, serviceset.Signing, serviceset.Notify),
		Settings: handlers.NewSettingsHandler(serviceset.Settings),
		Sign:     handlers.NewSignHandler(log, serviceset.Signing),
	}
}
