package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jkaninda/huddle/internal/agent"
	"github.com/jkaninda/huddle/internal/calendar"
	"github.com/jkaninda/huddle/internal/config"
	"github.com/jkaninda/huddle/internal/joiner"
	"github.com/jkaninda/huddle/internal/llm"
	"github.com/jkaninda/huddle/internal/llm/gemini"
	"github.com/jkaninda/huddle/internal/llm/openai"
	"github.com/jkaninda/huddle/internal/mail"
	"github.com/jkaninda/huddle/internal/meetingtime"
	"github.com/jkaninda/huddle/internal/observability"
	"github.com/jkaninda/huddle/internal/storage"
	pgstore "github.com/jkaninda/huddle/internal/storage/postgres"
	sqlitestore "github.com/jkaninda/huddle/internal/storage/sqlite"
	"github.com/jkaninda/huddle/internal/tools"
	"github.com/jkaninda/huddle/internal/tools/agenda"
	"github.com/jkaninda/huddle/internal/tools/email"
	"github.com/jkaninda/huddle/internal/tools/meeting"
	"github.com/jkaninda/huddle/internal/tools/timeparse"
	"github.com/jkaninda/huddle/internal/workflow"
	"github.com/jkaninda/huddle/internal/zoom"
)

// SharedComponents holds the subsystems every command builds on.
// Built once by initShared, torn down by Cleanup.
type SharedComponents struct {
	Config *config.Config
	Logger *slog.Logger
	Obs    *observability.Observability
	Store  storage.Store

	Resolver *meetingtime.Resolver
	Calendar *calendar.Service
	Joiner   *joiner.Joiner
	Opener   joiner.Opener
	Inbox    *mail.Inbox
	Zoom     *lazyZoom
	ToolReg  *tools.Registry

	// Set by initAgents.
	Provider  llm.Provider
	Assistant *agent.Agent
	Workflow  *workflow.Workflow

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// initShared builds everything that does not need an LLM provider.
// Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger, dryRun bool) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	dataDir := cfg.ResolvedDataDir()
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}
	logger.Debug("data directory initialized", slog.String("path", dataDir))

	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		obs.Shutdown(shutdownCtx)
	})
	logger.Debug("observability initialized",
		slog.Bool("metrics", obs.Metrics != nil),
		slog.Bool("tracing", obs.Tracer != nil),
	)

	loc, err := cfg.Location()
	if err != nil {
		sc.Cleanup()
		return nil, err
	}
	metrics := obs.MetricsOrNil()
	sc.Resolver = meetingtime.New(
		meetingtime.WithLocation(loc),
		meetingtime.WithLogger(logger),
		meetingtime.WithObserver(metrics),
	)

	store, err := initStore(cfg, logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	sc.Store = store
	sc.addCleanup(func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", slog.String("error", err.Error()))
		}
	})
	obs.Health.AddCheck("storage", store.Ping)

	calStore, err := initCalendarStore(cfg, store)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing calendar: %w", err)
	}
	sc.Calendar = calendar.NewService(calStore, sc.Resolver, logger)

	if dryRun || cfg.Joiner.DryRun {
		sc.Opener = &joiner.RecordingOpener{}
	} else {
		sc.Opener = joiner.BrowserOpener{}
	}
	sc.Joiner = joiner.New(sc.Calendar, sc.Opener, logger,
		joiner.WithWindow(cfg.Joiner.Window()),
		joiner.WithClock(sc.Resolver.Now),
		joiner.WithObserver(metrics),
	)

	sc.Inbox = mail.NewMockInbox(sc.Resolver.Now())
	sc.Zoom = newLazyZoom(cfg, obs, logger)

	sc.ToolReg = tools.NewRegistry()
	sc.ToolReg.Register(
		timeparse.New(sc.Resolver),
		email.NewCheckTool(sc.Inbox),
		email.NewMarkReadTool(sc.Inbox),
		agenda.NewAddTool(sc.Calendar),
		agenda.NewListTool(sc.Calendar),
		agenda.NewUpcomingTool(sc.Joiner),
	)
	sc.ToolReg.Register(meeting.All(meeting.Deps{
		API:      sc.Zoom,
		Resolver: sc.Resolver,
		Opener:   sc.Opener,
	})...)
	logger.Debug("tools registered", slog.Int("count", sc.ToolReg.Len()))

	return sc, nil
}

// initAgents builds the LLM provider, the interactive assistant and the
// email workflow on top of initShared.
func (sc *SharedComponents) initAgents() error {
	cfg := sc.Config
	if err := cfg.ValidateProvider(); err != nil {
		return err
	}

	provider, err := newLLMProvider(cfg, sc.Logger)
	if err != nil {
		return fmt.Errorf("initializing LLM provider: %w", err)
	}
	sc.Logger.Debug("llm provider initialized", slog.String("provider", provider.Name()))
	if sc.Obs.Metrics != nil || sc.Obs.Tracer != nil {
		provider = observability.NewInstrumentedProvider(provider, sc.Obs.MetricsOrNil(), sc.Obs.TracerOrNoop())
	}
	sc.Provider = provider

	sc.Assistant = agent.New("assistant", provider, workflow.AssistantInstruction, sc.Logger).
		WithTools(sc.ToolReg).
		WithMaxIterations(cfg.Agent.Iterations()).
		WithMaxTokens(cfg.Agent.OutputTokens()).
		WithMemory(agent.NewMemory(cfg.Agent.History())).
		WithObservability(sc.Obs)

	wf, err := workflow.New(provider, sc.ToolReg, workflow.DefaultStages(), sc.Logger)
	if err != nil {
		return fmt.Errorf("building workflow: %w", err)
	}
	sc.Workflow = wf.
		WithStore(sc.Store.Runs()).
		WithObservability(sc.Obs).
		WithMaxIterations(cfg.Agent.Iterations())
	return nil
}

// initStore opens the configured backend and migrates it.
func initStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	switch driver := cfg.StorageDriverName(); driver {
	case storage.DriverSQLite:
		store, err = initSQLiteStore(cfg, logger)
	case storage.DriverPostgres:
		store, err = initPostgresStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrating %s store: %w", store.Driver(), err)
	}
	logger.Debug("storage initialized", slog.String("driver", store.Driver()))
	return store, nil
}

func initSQLiteStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	sqlCfg := sqlitestore.Config{Path: cfg.DatabasePath()}
	if cfg.Storage != nil && cfg.Storage.SQLite != nil {
		sqlCfg.JournalMode = cfg.Storage.SQLite.JournalMode
	}
	return sqlitestore.Open(sqlCfg, logger)
}

func initPostgresStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	pg := cfg.Storage.Postgres
	pgCfg := pgstore.Config{
		DSN:             pg.DSN,
		MaxOpenConns:    pg.MaxOpenConns,
		MaxIdleConns:    pg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(pg.ConnMaxLifetimeS) * time.Second,
	}
	return pgstore.Open(pgCfg, logger)
}

// initCalendarStore picks the database or the JSON file as the event store.
func initCalendarStore(cfg *config.Config, store storage.Store) (calendar.Store, error) {
	if cfg.Calendar.Driver == config.CalendarDriverFile {
		return calendar.NewFileStore(cfg.CalendarPath())
	}
	return store.Events(), nil
}

// newLLMProvider creates the default provider, wrapped in a fallback chain
// when fallbacks are configured.
func newLLMProvider(cfg *config.Config, logger *slog.Logger) (llm.Provider, error) {
	primary, err := buildProvider(cfg.Providers.Default, cfg, logger)
	if err != nil {
		return nil, err
	}
	if len(cfg.Providers.Fallback) == 0 {
		return primary, nil
	}

	providers := []llm.Provider{primary}
	for _, name := range cfg.Providers.Fallback {
		fb, err := buildProvider(name, cfg, logger)
		if err != nil {
			logger.Warn("skipping fallback provider",
				slog.String("provider", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		providers = append(providers, fb)
	}
	if len(providers) == 1 {
		return primary, nil
	}
	return llm.NewFallbackProvider(logger, providers...)
}

// buildProvider creates a single LLM provider by name.
func buildProvider(name string, cfg *config.Config, logger *slog.Logger) (llm.Provider, error) {
	switch name {
	case "gemini", "":
		var opts []gemini.Option
		if cfg.Providers.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.Providers.Gemini.BaseURL))
		}
		return gemini.NewClient(cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.Model, logger, opts...), nil
	case "openai":
		if cfg.Providers.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("providers.openai.api_key is not set")
		}
		var opts []openai.Option
		if cfg.Providers.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Providers.OpenAI.BaseURL))
		}
		return openai.NewClient(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.Model, logger, opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider: %q", name)
	}
}

// lazyZoom builds the Zoom client on first use, so commands that never talk
// to Zoom run without credentials or a cached login. A failed build is
// retried on the next call.
type lazyZoom struct {
	mu     sync.Mutex
	client *zoom.Client
	build  func() (*zoom.Client, error)
}

func newLazyZoom(cfg *config.Config, obs *observability.Observability, logger *slog.Logger) *lazyZoom {
	return &lazyZoom{build: func() (*zoom.Client, error) {
		if err := cfg.ValidateZoom(); err != nil {
			return nil, err
		}
		// The token source refreshes on its own schedule, so it must not
		// inherit a request context.
		ts, err := zoom.TokenSourceFor(context.Background(), cfg.Zoom, cfg.ZoomTokenCachePath())
		if err != nil {
			return nil, err
		}
		opts := []zoom.Option{
			zoom.WithLogger(logger),
			zoom.WithObserver(obs.MetricsOrNil()),
			zoom.WithTracer(obs.TracerOrNoop()),
		}
		if cfg.Zoom.APIBaseURL != "" {
			opts = append(opts, zoom.WithBaseURL(cfg.Zoom.APIBaseURL))
		}
		return zoom.NewClient(ts, opts...), nil
	}}
}

func (z *lazyZoom) get() (*zoom.Client, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.client != nil {
		return z.client, nil
	}
	c, err := z.build()
	if err != nil {
		return nil, err
	}
	z.client = c
	return c, nil
}

func (z *lazyZoom) CreateMeeting(ctx context.Context, req zoom.CreateMeetingRequest) (*zoom.Meeting, error) {
	c, err := z.get()
	if err != nil {
		return nil, err
	}
	return c.CreateMeeting(ctx, req)
}

func (z *lazyZoom) UpdateMeeting(ctx context.Context, id string, req zoom.UpdateMeetingRequest) (*zoom.Meeting, error) {
	c, err := z.get()
	if err != nil {
		return nil, err
	}
	return c.UpdateMeeting(ctx, id, req)
}

func (z *lazyZoom) GetMeeting(ctx context.Context, id string) (*zoom.Meeting, error) {
	c, err := z.get()
	if err != nil {
		return nil, err
	}
	return c.GetMeeting(ctx, id)
}

func (z *lazyZoom) ListMeetings(ctx context.Context, opts zoom.ListOptions) (*zoom.MeetingList, error) {
	c, err := z.get()
	if err != nil {
		return nil, err
	}
	return c.ListMeetings(ctx, opts)
}

func (z *lazyZoom) DeleteMeeting(ctx context.Context, id string) error {
	c, err := z.get()
	if err != nil {
		return err
	}
	return c.DeleteMeeting(ctx, id)
}
