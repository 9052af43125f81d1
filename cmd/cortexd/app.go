package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jverrill/cortex/internal/agent"
	"github.com/jverrill/cortex/internal/agent/providers"
	"github.com/jverrill/cortex/internal/confirm"
	"github.com/jverrill/cortex/internal/config"
	"github.com/jverrill/cortex/internal/notify"
	"github.com/jverrill/cortex/internal/scratch"
	"github.com/jverrill/cortex/internal/session"
	"github.com/jverrill/cortex/internal/tasks"
	"github.com/jverrill/cortex/internal/toolkit"
	"github.com/jverrill/cortex/internal/tools"
	"github.com/jverrill/cortex/internal/transport"
)

// app bundles every wired component the daemon needs, built once at
// startup by buildApp.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	taskStore tasks.Store
	scheduler *tasks.Scheduler
	recovery  *tasks.Recovery
	transport transport.Transport
	handler   transport.Handler

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("cleanup error during shutdown", "error", err)
		}
	}
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Logging.Format, cfg.Logging.Level)
	a := &app{cfg: cfg, logger: logger}

	scratchSpace, err := scratch.New(cfg.Scratch.Root)
	if err != nil {
		return nil, fmt.Errorf("init scratch space: %w", err)
	}

	taskStore, err := tasks.OpenSQLiteStore(cfg.Tasks.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	a.taskStore = taskStore
	a.closers = append(a.closers, taskStore.Close)

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build LLM provider: %w", err)
	}

	policy := toolkit.NewConfirmationPolicy(cfg.Tools.ConfirmationPolicyPath)
	registry := toolkit.NewRegistry(policy, logger)

	router := notify.NewRouter(logger)
	cliChan := newCLIChannel(os.Stdout)
	router.Register(cliChan)
	if cfg.Channels.Default != "" {
		router.SetDefault(cfg.Channels.Default)
	} else {
		router.SetDefault(cliChan.Name())
	}

	// The executor is constructed before the scheduler (which requires one)
	// and before the turn loop (whose Generate method it needs); its
	// generate function is wired in once the loop exists below.
	executor := tasks.NewExecutor(taskStore, router, nil, cfg.Owner.UserID, logger)
	scheduler := tasks.NewScheduler(taskStore, executor, logger)
	a.scheduler = scheduler

	sessions := session.NewStore(cfg.Session.Window)

	registerTools(registry, scheduler, taskStore, scratchSpace, logger)

	describer := tools.NewDescriber(taskStore)
	loop := agent.NewLoop(provider, registry,
		agent.WithTaskDescriber(describer),
		agent.WithDefaultModel(cfg.LLM.Model),
		agent.WithMaxRounds(cfg.LLM.MaxRounds),
		agent.WithLogger(logger),
	)
	executor.SetGenerate(loop.Generate)

	recovery := tasks.NewRecovery(taskStore, scheduler, router, cfg.Owner.UserID, logger)
	a.recovery = recovery

	broker := confirm.NewBroker(0, func(id string, call *agent.PendingToolCall, summary string) {
		cliChan.Send(context.Background(), cfg.Owner.UserID,
			fmt.Sprintf("Confirm %s? (reply cfm:%s:y or cfm:%s:n)\n%s", call.Name, id, id, summary))
	})
	broker.RegisterSummary("send_email", tools.SummarizeSendMail)

	cli := transport.NewCLI(cfg.Owner.UserID, os.Stdin, os.Stdout)
	a.transport = cli
	a.handler = newHandler(loop, sessions, broker, recovery, cfg)

	return a, nil
}

func buildProvider(cfg *config.Config, logger *slog.Logger) (agent.Provider, error) {
	anthropic, err := providers.NewAnthropic(providers.AnthropicConfig{
		APIKey:       cfg.LLM.Anthropic.APIKey,
		BaseURL:      cfg.LLM.Anthropic.BaseURL,
		DefaultModel: cfg.LLM.Model,
	})
	if err != nil {
		return nil, err
	}

	breakerCfg := agent.FailoverConfig{
		CircuitBreakerThreshold: cfg.LLM.CircuitBreaker.Threshold,
		CircuitBreakerTimeout:   cfg.LLM.CircuitBreaker.Timeout,
	}
	failover := agent.NewFailover("anthropic", anthropic, breakerCfg)

	if cfg.LLM.OpenAI.APIKey != "" {
		openai, err := providers.NewOpenAI(providers.OpenAIConfig{
			APIKey:       cfg.LLM.OpenAI.APIKey,
			BaseURL:      cfg.LLM.OpenAI.BaseURL,
			DefaultModel: cfg.LLM.OpenAI.Model,
		})
		if err != nil {
			logger.Warn("openai fallback disabled: invalid config", "error", err)
		} else {
			failover.AddProvider("openai", openai)
		}
	}

	return failover, nil
}

func registerTools(registry *toolkit.Registry, scheduler *tasks.Scheduler, store tasks.Store, space *scratch.Space, logger *slog.Logger) {
	registry.Register(tools.NewScheduleTool(scheduler))
	registry.Register(tools.NewListTasksTool(store))
	registry.Register(tools.NewCancelScheduledTaskTool(scheduler, store))
	registry.Register(tools.NewScratchWriteTool(space))
	registry.Register(tools.NewScratchReadTool(space))
	registry.Register(tools.NewScratchListTool(space))
	registry.Register(tools.NewSendMailTool(logger))
}
