package modules

import (
	"github.com/iota-uz/crm-exchange/modules/crm"
	"github.com/iota-uz/crm-exchange/pkg/application"
)

var (
	BuiltInModules = []application.Module{
		crm.NewModule(nil),
	}
)

func Load(app application.Application, externalModules ...application.Module) error {
	return app.RegisterModules(externalModules...)
}
