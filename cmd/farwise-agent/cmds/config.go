package cmds

import (
	"context"
	"time"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/agents"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/domains"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/domains/activity"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/domains/profile"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/events"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/inference/engine"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/inference/openai"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/orchestrator"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/store"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the runtime configuration, read from the config file, FARWISE_*
// environment variables and flags, in increasing precedence.
type Config struct {
	Listen      string   `mapstructure:"listen"`
	Engine      string   `mapstructure:"engine"`
	Store       string   `mapstructure:"store"`
	RedisAddr   string   `mapstructure:"redis-addr"`
	RedisPrefix string   `mapstructure:"redis-prefix"`
	Roles       string   `mapstructure:"roles"`
	InputRate   float64  `mapstructure:"input-rate"`
	InputBurst  int      `mapstructure:"input-burst"`
	Origins     []string `mapstructure:"origins"`

	OpenAIAPIKey  string `mapstructure:"openai-api-key"`
	OpenAIBaseURL string `mapstructure:"openai-base-url"`
	OpenAIModel   string `mapstructure:"openai-model"`
	OpenAILocal   bool   `mapstructure:"openai-allow-local"`

	Orchestrator orchestrator.Config `mapstructure:"orchestrator"`
}

func AddConfigFlags(fs *pflag.FlagSet) {
	defaults := openai.DefaultSettings()
	fs.String("listen", ":8080", "HTTP listen address")
	fs.String("engine", "openai", "Inference engine (openai, echo)")
	fs.String("store", "", "SQLite database for saved records, in memory if empty")
	fs.String("redis-addr", "", "Also publish events to this redis server")
	fs.String("redis-prefix", "farwise", "Channel prefix for redis events")
	fs.String("roles", "", "YAML file overriding role instructions and voices")
	fs.Float64("input-rate", 2, "Accepted user inputs per second and connection")
	fs.Int("input-burst", 4, "Burst of user inputs per connection")
	fs.StringSlice("origins", nil, "Allowed websocket origin patterns")
	fs.String("openai-api-key", "", "OpenAI API key")
	fs.String("openai-base-url", defaults.BaseURL, "OpenAI compatible API base URL")
	fs.String("openai-model", defaults.Model, "Chat model")
	fs.Bool("openai-allow-local", false, "Allow http and local network model endpoints")
}

func LoadConfig() (*Config, error) {
	ret := &Config{Orchestrator: orchestrator.DefaultConfig()}
	if err := viper.Unmarshal(ret); err != nil {
		return nil, errors.Wrap(err, "could not decode configuration")
	}
	return ret, nil
}

func (c *Config) OpenAISettings() openai.Settings {
	s := openai.DefaultSettings()
	s.APIKey = c.OpenAIAPIKey
	s.AllowLocal = c.OpenAILocal
	if c.OpenAIBaseURL != "" {
		s.BaseURL = c.OpenAIBaseURL
	}
	if c.OpenAIModel != "" {
		s.Model = c.OpenAIModel
	}
	return s
}

func (c *Config) BuildEngine() (engine.Engine, error) {
	switch c.Engine {
	case "echo":
		return engine.EchoEngine{}, nil
	case "openai", "":
		e, err := openai.NewEngine(c.OpenAISettings())
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, errors.Errorf("unknown engine %q", c.Engine)
	}
}

func (c *Config) BuildStore() (store.Store, error) {
	if c.Store == "" {
		return store.NewMemoryStore(), nil
	}
	st, err := store.NewSQLiteStore(c.Store)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// BuildCatalog returns every domain with role overrides applied.
func (c *Config) BuildCatalog(st store.Store) (domains.Catalog, error) {
	overrides := agents.Overrides{}
	if c.Roles != "" {
		var err error
		overrides, err = agents.LoadOverridesFromFile(c.Roles)
		if err != nil {
			return nil, err
		}
	}
	ds := []*domains.Domain{profile.New(st), activity.New(st)}
	for _, d := range ds {
		d.Roles = overrides.Apply(d.Name, d.Roles)
	}
	return domains.NewCatalog(ds...), nil
}

// BuildPublisher returns the publisher fanning events out to the router and,
// when configured, to redis. The returned cleanup closes the redis client.
func (c *Config) BuildPublisher(ctx context.Context, router *events.Router) (events.Publisher, func(), error) {
	publishers := events.MultiPublisher{router.EventPublisher()}
	if c.RedisAddr == "" {
		return publishers, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrapf(err, "could not reach redis at %s", c.RedisAddr)
	}
	log.Info().Str("addr", c.RedisAddr).Msg("publishing events to redis")
	publishers = append(publishers, events.NewRedisPublisher(client, events.WithChannelPrefix(c.RedisPrefix)))
	return publishers, func() { _ = client.Close() }, nil
}

// BuildOrchestrators creates one orchestrator per domain of the catalog.
func (c *Config) BuildOrchestrators(
	e engine.Engine,
	catalog domains.Catalog,
	publisher events.Publisher,
	st store.Store,
	reg prometheus.Registerer,
) ([]*orchestrator.Orchestrator, error) {
	metrics := orchestrator.NewMetrics("farwise", reg)
	ret := []*orchestrator.Orchestrator{}
	for _, name := range catalog.Names() {
		d, err := catalog.Get(name)
		if err != nil {
			return nil, err
		}
		o, err := orchestrator.New(e, d,
			orchestrator.WithPublisher(publisher),
			orchestrator.WithStore(st),
			orchestrator.WithMetrics(metrics),
			orchestrator.WithConfig(c.Orchestrator),
		)
		if err != nil {
			return nil, err
		}
		ret = append(ret, o)
	}
	return ret, nil
}
