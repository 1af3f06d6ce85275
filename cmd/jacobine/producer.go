package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eluceo/jacobine/internal/dbgateway"
	"github.com/eluceo/jacobine/internal/fetcher"
	"github.com/eluceo/jacobine/internal/logger"
	"github.com/eluceo/jacobine/internal/producer"
	"github.com/eluceo/jacobine/internal/queue"
	"github.com/eluceo/jacobine/internal/retry"
)

// newProducerCmd builds `jacobine producer <project>`, running the
// seed producer for a configured project's feed.
func newProducerCmd(configPath, metricsAddr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "producer <project>",
		Short: "Run the one-shot feed producer for a configured project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProducer(args[0], *configPath, *metricsAddr)
		},
	}
}

func runProducer(projectName, configPath, metricsAddr string) error {
	cfg, log, err := loadAppConfig(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	project, err := cfg.Project(projectName)
	if err != nil {
		return err
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
		Queue:      "download.http",
		RoutingKey: "download.http",
		DeadLetter: true,
	}); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}

	fetch := fetcher.New(cfg.Various.Requests.Timeout, cfg.Various.Downloads.Timeout)

	p := producer.New(db, qc, fetch, log, project)

	log.Info("producer starting", logger.String("project", projectName))
	if err := p.Run(ctx); err != nil {
		log.Error("producer failed", logger.Error(err))
		return err
	}

	log.Info("producer finished", logger.String("project", projectName))
	return nil
}

const dialRetryAttempts = 5
