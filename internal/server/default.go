package server

import (
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/iota-uz/crm-exchange/pkg/application"
	"github.com/iota-uz/crm-exchange/pkg/configuration"
	"github.com/iota-uz/crm-exchange/pkg/constants"
	"github.com/iota-uz/crm-exchange/pkg/middleware"
	"github.com/iota-uz/crm-exchange/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	loggerOpts := middleware.DefaultLoggerOptions()
	if conf.RequestIDHeader != "" {
		loggerOpts.RequestIDHeader = conf.RequestIDHeader
	}

	// Core middleware stack with tracing capabilities
	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger, loggerOpts), // root span for each request
		middleware.Provide(constants.AppKey, app),

		middleware.TracedMiddleware("cors"),
		middleware.Cors(conf.CorsOriginList()...),

		middleware.TracedMiddleware("opsGuard"),
		middleware.OpsGuard(middleware.OpsGuardOptions{
			Enabled:       conf.GoAppEnvironment == configuration.Production && conf.OpsGuard.Enabled,
			PathPrefixes:  []string{conf.Prometheus.Path},
			CIDRs:         conf.OpsGuard.CIDRs,
			Token:         conf.OpsGuard.Token,
			BasicAuthUser: conf.OpsGuard.BasicAuthUser,
			BasicAuthPass: conf.OpsGuard.BasicAuthPass,
			RealIPHeader:  conf.OpsGuard.RealIPHeader,
		}),
	}

	if conf.RateLimit.Enabled {
		var store limiter.Store
		var err error

		switch conf.RateLimit.Storage {
		case "redis":
			store, err = middleware.NewRedisStore(conf.RateLimit.RedisURL)
			if err != nil {
				options.Logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
				store = middleware.NewMemoryStore()
			}
		default:
			store = middleware.NewMemoryStore()
		}

		middlewares = append(middlewares,
			middleware.TracedMiddleware("rateLimit"),
			middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerPeriod: conf.RateLimit.GlobalRPS,
				Store:             store,
			}),
		)
	}

	app.RegisterMiddleware(middlewares...)
	return server.NewHTTPServer(app, nil, nil), nil
}
