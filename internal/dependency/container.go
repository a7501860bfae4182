// Package dependency wires core toolbridge services using go.uber.org/dig.
package dependency

import (
	"context"

	"go.uber.org/dig"

	"github.com/toolbridge/toolbridge/internal/agent"
	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/internal/model"
	"github.com/toolbridge/toolbridge/internal/provider"
	"github.com/toolbridge/toolbridge/internal/schema"
	"github.com/toolbridge/toolbridge/internal/session"
	"github.com/toolbridge/toolbridge/internal/tools"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg       *config.Config
	modelCli  schema.ModelClient
	providers *provider.Manager
	store     *session.Store
}

func (c *Container) Config() *config.Config       { return c.cfg }
func (c *Container) Model() schema.ModelClient    { return c.modelCli }
func (c *Container) Providers() *provider.Manager { return c.providers }
func (c *Container) SessionStore() *session.Store { return c.store }

// New builds and wires the core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(newModelClient); err != nil {
		return nil, err
	}
	if err := d.Provide(newProviderManager); err != nil {
		return nil, err
	}
	if err := d.Provide(newSessionStore); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		modelCli schema.ModelClient,
		providers *provider.Manager,
		store *session.Store,
	) {
		result = &Container{
			cfg:       cfg,
			modelCli:  modelCli,
			providers: providers,
			store:     store,
		}
	})
	return result, err
}

// Connect initializes every provider connection, builds the merged tool
// registry from the ones that became Ready, and returns a session manager
// whose conversations run against that registry.
func (c *Container) Connect(ctx context.Context) (*session.Manager, *tools.Registry) {
	c.providers.ConnectAll(ctx)
	conns := c.providers.Connections()
	list := make([]tools.Connection, len(conns))
	for i, conn := range conns {
		list[i] = conn
	}
	registry := tools.BuildRegistry(list)

	factory := func(saved schema.Messages) *agent.Orchestrator {
		opts := []agent.Option{agent.WithMaxRounds(c.cfg.Agent.MaxToolRounds)}
		if saved.Len() > 0 {
			opts = append(opts, agent.WithHistory(saved))
		} else {
			opts = append(opts, agent.WithSystemPrompt(c.cfg.Agent.SystemPrompt))
		}
		return agent.NewOrchestrator(c.modelCli, registry, opts...)
	}

	return session.NewManager(c.store, factory), registry
}

// Close tears down every provider connection.
func (c *Container) Close() {
	c.providers.CloseAll()
}

func newModelClient(cfg *config.Config) (schema.ModelClient, error) {
	return model.New(model.Params{
		Backend: cfg.Model.Backend,
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Model,
		APIKey:  cfg.Model.APIKey,
		Timeout: cfg.Model.Timeout(),
	})
}

func newProviderManager(cfg *config.Config) *provider.Manager {
	specs := make(map[string]provider.Spec, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		specs[name] = provider.Spec{
			Command: pc.Command,
			Args:    pc.Args,
			Env:     pc.Env,
		}
	}

	retry := provider.DefaultRetryPolicy()
	if cfg.Agent.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.Agent.RetryAttempts
	}
	if cfg.Agent.RetryDelaySeconds > 0 {
		retry.Delay = cfg.Agent.RetryDelay()
	}

	return provider.NewManager(specs, retry)
}

func newSessionStore(cfg *config.Config) (*session.Store, error) {
	return session.NewStore(cfg.WorkspacePath())
}
