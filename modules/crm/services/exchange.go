package services

import (
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/document"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/entity"
	"github.com/iota-uz/crm-exchange/pkg/eventbus"
)

type enginePair struct {
	imports *ImportEngine
	deletes *DeleteEngine
}

// Exchange holds one import engine and one delete engine per registered entity.
type Exchange struct {
	registry *entity.Registry
	engines  map[string]enginePair
}

func NewExchange(
	registry *entity.Registry,
	api document.API,
	publisher eventbus.EventBus,
	logger *logrus.Logger,
	cfg ImportConfig,
) *Exchange {
	x := &Exchange{
		registry: registry,
		engines:  make(map[string]enginePair),
	}
	for _, e := range registry.All() {
		x.engines[e.Name] = enginePair{
			imports: NewImportEngine(e, api, publisher, logger, cfg),
			deletes: NewDeleteEngine(e, api, publisher, logger),
		}
	}
	return x
}

func (x *Exchange) lookup(key string) (enginePair, error) {
	e, ok := x.registry.Lookup(key)
	if !ok {
		return enginePair{}, ErrUnknownEntity.WithMessage("unknown entity %q", key)
	}
	return x.engines[e.Name], nil
}

// Import accepts an entity name, slug or doctype.
func (x *Exchange) Import(key string) (*ImportEngine, error) {
	p, err := x.lookup(key)
	if err != nil {
		return nil, err
	}
	return p.imports, nil
}

func (x *Exchange) Delete(key string) (*DeleteEngine, error) {
	p, err := x.lookup(key)
	if err != nil {
		return nil, err
	}
	return p.deletes, nil
}

func (x *Exchange) Entities() []entity.Entity {
	return x.registry.All()
}
