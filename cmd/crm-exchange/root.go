package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/crm-exchange/modules/crm"
	"github.com/iota-uz/crm-exchange/modules/crm/infrastructure/documentapi"
	"github.com/iota-uz/crm-exchange/modules/crm/services"
	"github.com/iota-uz/crm-exchange/pkg/configuration"
	"github.com/iota-uz/crm-exchange/pkg/erp"
	"github.com/iota-uz/crm-exchange/pkg/eventbus"
	"github.com/iota-uz/crm-exchange/pkg/logging"
)

// exchangeFactory builds the exchange lazily so --help never loads configuration.
type exchangeFactory func(global *globalOptions) (*services.Exchange, error)

type globalOptions struct {
	json    bool
	noInput bool
	verbose bool
}

func newRootCmd(build exchangeFactory) *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "crm-exchange",
		Short:         "Bulk import and safe bulk delete for CRM records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print the final state as a JSON line")
	cmd.PersistentFlags().BoolVar(&opts.noInput, "no-input", false, "Never prompt; fail instead of asking")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr at debug level")

	cmd.AddCommand(newEntitiesCmd(build, &opts))
	cmd.AddCommand(newImportCmd(build, &opts))
	cmd.AddCommand(newDeleteCmd(build, &opts))
	return cmd
}

func defaultExchange(global *globalOptions) (*services.Exchange, error) {
	conf := configuration.Use()
	// stdout carries command output; logs go to stderr
	level := conf.LogrusLogLevel()
	if global.verbose {
		level = logrus.DebugLevel
	}
	logger := logging.ConsoleLogger(level)
	logger.SetOutput(os.Stderr)
	registry, err := crm.LoadRegistry(conf.EntitiesPath)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	client, err := erp.New(erp.ConfigFrom(conf), logger)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	return services.NewExchange(
		registry,
		documentapi.NewRepository(client),
		eventbus.NewEventPublisher(logger),
		logger,
		services.ImportConfig{
			CompanyScope:       conf.CompanyScope,
			AcceptedExtensions: conf.Import.AcceptedExtensions,
			MaxUploadSize:      conf.Import.MaxUploadSize,
			SettleDelay:        conf.Import.SettleDelay,
		},
	), nil
}

func Execute() {
	if err := newRootCmd(defaultExchange).Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
