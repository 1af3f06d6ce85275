// Package config loads and validates jacobine's YAML configuration: broker
// credentials, database credentials, logging, per-tool application paths,
// shared timeouts, and the per-project sections under Projects.<Name>.
package config

import (
	"fmt"
	"time"

	"github.com/eluceo/jacobine/internal/logger"
)

// RabbitMQ holds broker connection credentials.
type RabbitMQ struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Vhost    string `yaml:"vhost"`
}

func (c *RabbitMQ) setDefaults() {
	if c.Port == 0 {
		c.Port = 5672
	}
	if c.Vhost == "" {
		c.Vhost = "/"
	}
}

// URL builds the amqp091 dial URL.
func (c RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", c.User, c.Password, c.Host, c.Port, c.Vhost)
}

// MySQL holds database connection credentials shared across projects; the
// database name itself is per-project (see Project.MySQLDatabase below).
type MySQL struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

func (c *MySQL) setDefaults() {
	if c.Port == 0 {
		c.Port = 3306
	}
}

// DSN builds a go-sql-driver/mysql DSN for the named database.
func (c MySQL) DSN(database string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, c.Host, c.Port, database)
}

// Logging configures the shared structured logger.
type Logging struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	OutputPaths []string `yaml:"output_paths"`
}

func (c *Logging) toLoggerConfig() logger.Config {
	return logger.Config{Level: c.Level, Development: c.Development, OutputPaths: c.OutputPaths}
}

// Application describes one configured external binary (tar, git, phploc,
// pdepend, cvsanaly, github-linguist).
type Application struct {
	Path        string        `yaml:"path"`
	Timeout     time.Duration `yaml:"timeout"`
	FilePattern string        `yaml:"file_pattern"`
}

// Various holds the shared request/download timeout knobs.
type Various struct {
	Requests struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"requests"`
	Downloads struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"downloads"`
}

func (c *Various) setDefaults() {
	if c.Requests.Timeout == 0 {
		c.Requests.Timeout = 30 * time.Second
	}
	if c.Downloads.Timeout == 0 {
		c.Downloads.Timeout = 3600 * time.Second
	}
}

// Gitweb describes the upstream git hosting a project consults when
// discovering repository work records.
type Gitweb struct {
	Host string `yaml:"host"`
}

// Gerrit and CVSAnaly hold per-project tool config file paths; they are
// opaque to the orchestrator, passed through to the subprocess verbatim.
type Gerrit struct {
	ConfigFile string `yaml:"config_file"`
}

type CVSAnaly struct {
	ConfigFile string `yaml:"config_file"`
}

// ConsumerStage holds per-project, per-stage overrides (e.g. which
// analyzers run after extraction).
type ConsumerStage struct {
	Analyzers []string `yaml:"analyzers"`
}

// Project is one entry under Projects.<Name>.
type Project struct {
	Name             string                   `yaml:"-"`
	MySQLDatabase    string                   `yaml:"mysql_database"`
	RabbitMQExchange string                   `yaml:"rabbitmq_exchange"`
	ReleasesPath     string                   `yaml:"releases_path"`
	GitCheckoutPath  string                   `yaml:"git_checkout_path"`
	Gitweb           Gitweb                   `yaml:"gitweb"`
	Gerrit           Gerrit                   `yaml:"gerrit"`
	CVSAnaly         CVSAnaly                 `yaml:"cvsanaly"`
	NNTPHost         string                   `yaml:"nntp_host"`
	Consumer         map[string]ConsumerStage `yaml:"consumer"`
	FeedURL          string                   `yaml:"feed_url"`
}

// Config is the root configuration document.
type Config struct {
	RabbitMQ    RabbitMQ           `yaml:"rabbitmq"`
	MySQL       MySQL              `yaml:"mysql"`
	Logging     Logging            `yaml:"logging"`
	Application map[string]Application `yaml:"application"`
	Various     Various            `yaml:"various"`
	Projects    map[string]Project `yaml:"projects"`
}

// SetDefaults fills in zero-valued fields across every section.
func (c *Config) SetDefaults() {
	c.RabbitMQ.setDefaults()
	c.MySQL.setDefaults()
	c.Various.setDefaults()
	if c.Application == nil {
		c.Application = map[string]Application{}
	}
	for name, project := range c.Projects {
		project.Name = name
		c.Projects[name] = project
	}
}

// Validate checks that the sections needed to run any command are present.
func (c *Config) Validate() error {
	if c.MySQL.User == "" {
		return fmt.Errorf("mysql.user is required")
	}
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq.host is required")
	}
	for name, project := range c.Projects {
		if project.MySQLDatabase == "" {
			return fmt.Errorf("projects.%s.mysql_database is required", name)
		}
		if project.RabbitMQExchange == "" {
			return fmt.Errorf("projects.%s.rabbitmq_exchange is required", name)
		}
	}
	return nil
}

// Project looks up a project's configuration by name.
func (c *Config) Project(name string) (Project, error) {
	project, ok := c.Projects[name]
	if !ok {
		return Project{}, fmt.Errorf("unknown project %q", name)
	}
	return project, nil
}

// LoggerConfig exposes the logging section in the shared logger's own
// Config shape.
func (c *Config) LoggerConfig() logger.Config {
	return c.Logging.toLoggerConfig()
}
