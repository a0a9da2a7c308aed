package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danceforge/backoffice/internal/cache"
	"github.com/danceforge/backoffice/internal/catalog"
	"github.com/danceforge/backoffice/internal/checklist"
	"github.com/danceforge/backoffice/internal/config"
	"github.com/danceforge/backoffice/internal/logger"
	"github.com/danceforge/backoffice/pkg/client"
)

// app carries the flag values and the collaborators built from them
type app struct {
	configFile string
	upstream   string
	apiKey     string
	logLevel   string
	output     string

	cfg    *config.Config
	log    *zap.Logger
	client *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "marketctl",
		Short: "Run readiness checks and browse the resource catalog",
		Long: `marketctl talks to the marketplace API with the same engines the
backoffice server uses.

Available command groups:
  readiness - show and run the launch readiness checklist
  catalog   - list resources and facet counts`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: ./backoffice.yaml or /etc/backoffice/backoffice.yaml)")
	flags.StringVar(&a.upstream, "upstream", "", "marketplace API base URL, overrides the config")
	flags.StringVar(&a.apiKey, "api-key", "", "marketplace API key, overrides the config")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level written to stderr")
	flags.StringVarP(&a.output, "output", "o", "table", "output format: table or json")

	root.AddCommand(newReadinessCmd(a), newCatalogCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	switch a.output {
	case "table", "json":
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.upstream != "" {
		cfg.Upstream.BaseURL = a.upstream
	}
	if a.apiKey != "" {
		cfg.Upstream.APIKey = a.apiKey
	}

	// stdout belongs to command output
	log, err := logger.New(logger.Config{Level: a.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.client = client.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey,
		client.WithTimeout(cfg.Upstream.Timeout),
		client.WithEndpoints(client.Endpoints{
			Results:     cfg.Upstream.Endpoints.Results,
			RunTest:     cfg.Upstream.Endpoints.RunTest,
			RunCategory: cfg.Upstream.Endpoints.RunCategory,
			RunAll:      cfg.Upstream.Endpoints.RunAll,
			Resources:   cfg.Upstream.Endpoints.Resources,
			Users:       cfg.Upstream.Endpoints.Users,
		}),
	)
	return nil
}

// engine builds a checklist engine that reports notifications on stderr
func (a *app) engine(cmd *cobra.Command) (*checklist.Engine, error) {
	def, err := checklist.LoadDefinition(a.cfg.Checklist.DefinitionFile)
	if err != nil {
		return nil, err
	}

	results := cache.NewResultsCache(a.client, cache.NewMemoryStore(), a.cfg.Cache.TTL, a.log.Named("cache"))
	notify := checklist.NotifierFunc(func(_ context.Context, n checklist.Notification) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s: %s\n", n.Level, n.Title, n.Message)
	})

	return checklist.New(def, results,
		checklist.WithInvalidator(results),
		checklist.WithNotifier(notify),
		checklist.WithLogger(a.log.Named("checklist")),
	)
}

func (a *app) catalog() *catalog.Service {
	return catalog.NewService(a.client, a.cfg.Catalog.SellerConcurrency, a.log.Named("catalog"))
}

func (a *app) jsonOutput() bool {
	return strings.EqualFold(a.output, "json")
}
