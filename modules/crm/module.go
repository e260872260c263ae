package crm

import (
	_ "embed"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/document"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/entity"
	"github.com/iota-uz/crm-exchange/modules/crm/infrastructure/documentapi"
	"github.com/iota-uz/crm-exchange/modules/crm/presentation/controllers"
	"github.com/iota-uz/crm-exchange/modules/crm/services"
	"github.com/iota-uz/crm-exchange/pkg/application"
	"github.com/iota-uz/crm-exchange/pkg/configuration"
	"github.com/iota-uz/crm-exchange/pkg/erp"
)

//go:embed entities.yaml
var entitiesYAML []byte

// DefaultRegistry returns the built-in Lead, Deal and Contact registry.
func DefaultRegistry() (*entity.Registry, error) {
	return entity.ParseRegistry(entitiesYAML)
}

// LoadRegistry reads path when set and falls back to the built-in registry.
func LoadRegistry(path string) (*entity.Registry, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRegistry()
	}
	return entity.LoadRegistry(path)
}

type ModuleOptions struct {
	Configuration *configuration.Configuration
	Logger        *logrus.Logger
	// API replaces the ERP-backed document API when set.
	API document.API
	// Registry replaces the registry loaded from configuration when set.
	Registry *entity.Registry
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Name() string {
	return "crm"
}

func (m *Module) Register(app application.Application) error {
	conf := m.options.Configuration
	if conf == nil {
		conf = configuration.Use()
	}
	logger := m.options.Logger
	if logger == nil {
		logger = conf.Logger()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	registry := m.options.Registry
	if registry == nil {
		var err error
		registry, err = LoadRegistry(conf.EntitiesPath)
		if err != nil {
			return err
		}
	}

	api := m.options.API
	if api == nil {
		client, err := erp.New(erp.ConfigFrom(conf), logger)
		if err != nil {
			return err
		}
		api = documentapi.NewRepository(client)
	}

	exchange := services.NewExchange(registry, api, app.EventPublisher(), logger, services.ImportConfig{
		CompanyScope:       conf.CompanyScope,
		AcceptedExtensions: conf.Import.AcceptedExtensions,
		MaxUploadSize:      conf.Import.MaxUploadSize,
		SettleDelay:        conf.Import.SettleDelay,
	})
	app.RegisterServices(exchange)
	subscribeAuditLog(app, logger)

	app.RegisterControllers(
		controllers.NewExchangeController(app, conf.Import.MaxUploadSize),
	)
	return nil
}

func subscribeAuditLog(app application.Application, logger *logrus.Logger) {
	bus := app.EventPublisher()
	bus.Subscribe(func(e *services.ImportCompleted) {
		logger.WithFields(logrus.Fields{
			"entity":    e.Entity,
			"job":       e.JobID.String(),
			"reference": e.Reference,
			"attempts":  e.Attempts,
		}).Info("crm import completed")
	})
	bus.Subscribe(func(e *services.ImportFailed) {
		logger.WithFields(logrus.Fields{
			"entity": e.Entity,
			"job":    e.JobID.String(),
		}).Warn("crm import failed: " + e.Reason)
	})
	bus.Subscribe(func(e *services.DeleteCompleted) {
		logger.WithFields(logrus.Fields{
			"entity":  e.Entity,
			"batch":   e.BatchID.String(),
			"deleted": len(e.Deleted),
		}).Info("crm delete completed")
	})
	bus.Subscribe(func(e *services.DeleteFailed) {
		logger.WithFields(logrus.Fields{
			"entity":    e.Entity,
			"batch":     e.BatchID.String(),
			"deleted":   len(e.Deleted),
			"failed_id": e.FailedID,
		}).Warn("crm delete failed: " + e.Reason)
	})
}
