package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eluceo/jacobine/internal/config"
	"github.com/eluceo/jacobine/internal/consumer"
	"github.com/eluceo/jacobine/internal/dbgateway"
	"github.com/eluceo/jacobine/internal/fetcher"
	"github.com/eluceo/jacobine/internal/logger"
	"github.com/eluceo/jacobine/internal/process"
	"github.com/eluceo/jacobine/internal/queue"
	"github.com/eluceo/jacobine/internal/retry"
	"github.com/eluceo/jacobine/internal/stages"
)

// newConsumerCmd builds `jacobine consumer <StageName>`, running one
// long-lived consumer runtime bound to the named stage's queue.
func newConsumerCmd(configPath, metricsAddr *string) *cobra.Command {
	var projectName string

	cmd := &cobra.Command{
		Use:   "consumer <StageName>",
		Short: "Run one consumer bound to a stage's queue (e.g. Download\\HTTP)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsumer(args[0], projectName, *configPath, *metricsAddr)
		},
	}

	cmd.Flags().StringVar(&projectName, "project", "", "project this consumer processes (required)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runConsumer(stageName, projectName, configPath, metricsAddr string) error {
	cfg, log, err := loadAppConfig(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	project, err := cfg.Project(projectName)
	if err != nil {
		return err
	}

	registry := stages.NewRegistry()
	descriptor, ok := registry[stageName]
	if !ok {
		return fmt.Errorf("unknown stage %q (known stages: %s)", stageName, knownStageNames(registry))
	}

	ctx, cancel := signalContext()
	defer cancel()

	startMetricsServer(ctx, metricsAddr, log)

	db, err := dbgateway.Open(dbgateway.Credentials{
		Driver:   "mysql",
		Host:     cfg.MySQL.Host,
		Port:     cfg.MySQL.Port,
		User:     cfg.MySQL.User,
		Password: cfg.MySQL.Password,
		Database: project.MySQLDatabase,
	}, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	qc, err := queue.Dial(ctx, cfg.RabbitMQ.URL(), retry.Dial(dialRetryAttempts), log)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer qc.Close()

	if err := qc.DeclareTopology(queue.Topology{
		Exchange:   project.RabbitMQExchange,
		Queue:      descriptor.Queue,
		RoutingKey: descriptor.RoutingKey,
		DeadLetter: true,
	}); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}

	app := cfg.Application[descriptor.AppKey]

	deps := &stages.Deps{
		DB:      db,
		Queue:   qc,
		Runner:  stageProcessRunner(cfg, project, app),
		Fetch:   fetcher.New(cfg.Various.Requests.Timeout, cfg.Various.Downloads.Timeout),
		Log:     log,
		Project: project,
		App:     app,
	}
	handler := descriptor.New(deps)

	rt := consumer.New(qc, descriptor.Queue, handler, log)

	log.Info("consumer starting", logger.String("stage", stageName), logger.String("project", projectName))
	if err := rt.Run(ctx); err != nil {
		log.Error("consumer stopped with transport failure", logger.Error(err))
		return err
	}

	log.Info("consumer shut down cleanly", logger.String("stage", stageName))
	return nil
}

// stageProcessRunner builds the Process Runner a stage handler shells
// out with, rooted at the project's releases path and bounded by this
// stage's configured tool timeout — falling back to the shared download
// timeout when the application section leaves it unset, since a stage
// with no configured tool (Download.HTTP) never calls Run at all.
func stageProcessRunner(cfg *config.Config, project config.Project, app config.Application) *process.Runner {
	timeout := app.Timeout
	if timeout == 0 {
		timeout = cfg.Various.Downloads.Timeout
	}
	return process.New(project.ReleasesPath, timeout)
}

func knownStageNames(r stages.Registry) string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
