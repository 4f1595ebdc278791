package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"routerd/internal/backend"
	"routerd/internal/bootstrap"
	"routerd/internal/config"
	"routerd/internal/events"
	"routerd/internal/httpapi"
	"routerd/internal/hub"
	"routerd/internal/logging"
	"routerd/internal/tokenizer"
)

type options struct {
	cfg        config.ServingConfig
	configFile string
	envFile    string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{cfg: config.Default()}
	cmd := &cobra.Command{
		Use:           "routerd",
		Short:         "Validate serving limits, resolve the tokenizer, connect the backend and serve",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.load(cmd.Flags()); err != nil {
				return err
			}
			return o.run(cmd.Context(), stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	config.BindFlags(cmd.Flags(), &o.cfg)
	cmd.Flags().StringVar(&o.configFile, "config", "", "Optional YAML, JSON or TOML file with flag values (keys use underscores)")
	cmd.Flags().StringVar(&o.envFile, "env-file", "", "Optional dotenv file loaded before reading the environment (default: ./.env when present)")
	cmd.AddCommand(newPrintSchemaCmd(stdout))
	return cmd
}

func newPrintSchemaCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "print-schema",
		Short: "Print the API schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return httpapi.PrintSchema(stdout, version)
		},
	}
}

func argumentError(err error) error {
	return &bootstrap.Error{Kind: bootstrap.ArgumentValidation, Msg: err.Error(), Err: err}
}

// load applies the dotenv file, the environment and the config file to the
// flags the operator did not pass.
func (o *options) load(fs *pflag.FlagSet) error {
	if err := config.LoadDotenv(o.envFile); err != nil {
		return argumentError(err)
	}
	var vals config.Values
	if o.configFile != "" {
		v, err := config.Load(o.configFile)
		if err != nil {
			return argumentError(err)
		}
		vals = v
	}
	if err := config.Overlay(fs, os.LookupEnv, vals, "config", "env-file", "version"); err != nil {
		return argumentError(err)
	}
	if o.cfg.TokenizerName == "" {
		return &bootstrap.Error{Kind: bootstrap.ArgumentValidation, Msg: "`tokenizer_name` is required"}
	}
	return nil
}

func (o *options) run(ctx context.Context, stderr io.Writer) error {
	cfg := o.cfg
	env, err := config.ParseEnvironment(nil)
	if err != nil {
		return argumentError(err)
	}
	log := logging.New(stderr, cfg.JSONOutput, env.LogLevel)

	shutdownTracing, err := logging.InitTracing(ctx, cfg.OTLPEndpoint, cfg.OTLPServiceName)
	if err != nil {
		return argumentError(err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("flushing traces")
		}
	}()

	log.Info().
		Interface("args", cfg).
		Str("payload_limit", units.HumanSize(float64(cfg.PayloadLimit))).
		Bool("offline", env.OfflineMode()).
		Msg(fmt.Sprintf("routerd %s starting", version))
	if cfg.UsageStats != config.UsageStatsOff {
		log.Debug().Str("usage_stats", cfg.UsageStats.String()).Msg("usage statistics level")
	}

	pub := events.LogPublisher{Logger: log}
	variant, err := backend.New(cfg.Backend, backend.Settings{
		ShardUDSPath:   cfg.MasterShardUDSPath,
		ExecutorWorker: cfg.ExecutorWorker,
		Logger:         log,
		Publisher:      pub,
	})
	if err != nil {
		return argumentError(err)
	}
	resolver := tokenizer.New(tokenizer.Config{
		Locator: hub.Locator{Env: env, Logger: log},
		Converter: tokenizer.PythonConverter{
			Interpreter: cfg.TokenizerConverter,
			Env:         env,
			Logger:      log,
		},
		OutputDir:           cfg.TokenizerOutputDir,
		TokenizerConfigPath: cfg.TokenizerConfigPath,
		Logger:              log,
	})
	server := httpapi.NewServer(httpapi.Options{
		Version:         version,
		Logger:          log,
		RequestLogLevel: httpapi.ParseLevel(env.LogLevel),
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return bootstrap.New(bootstrap.Config{
		Serving:   cfg,
		Variant:   variant,
		Resolver:  resolver,
		Server:    server,
		Logger:    log,
		Publisher: pub,
	}).Run(ctx)
}
