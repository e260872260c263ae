package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iota-uz/crm-exchange/pkg/application"
)

const defaultPath = "/debug/prometheus"

// PrometheusController exposes a gatherer's metrics on a single GET route.
type PrometheusController struct {
	path     string
	gatherer prometheus.Gatherer
}

type Option func(*PrometheusController)

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *PrometheusController) {
		if g != nil {
			c.gatherer = g
		}
	}
}

func NewPrometheusController(path string, opts ...Option) application.Controller {
	if path == "" {
		path = defaultPath
	}
	c := &PrometheusController{path: path, gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	handler := promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
	r.Handle(c.path, handler).Methods(http.MethodGet)
}
