package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jkaninda/huddle/internal/config"
	"github.com/jkaninda/huddle/internal/gateway/httpapi"
	"github.com/jkaninda/huddle/internal/gateway/ws"
	"github.com/jkaninda/huddle/internal/ratelimit"
	"github.com/jkaninda/huddle/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API gateway and the background scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "override HTTP listen address (e.g. :8080); enables the HTTP gateway")
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		if cfg.Gateways.HTTP == nil {
			cfg.Gateways.HTTP = &config.HTTPGatewayConfig{}
		}
		cfg.Gateways.HTTP.Enabled = true
		cfg.Gateways.HTTP.ListenAddr = servePort
	}

	httpEnabled := cfg.Gateways.HTTP != nil && cfg.Gateways.HTTP.Enabled
	schedEnabled := cfg.Scheduler != nil && cfg.Scheduler.Enabled
	if !httpEnabled && !schedEnabled {
		return errors.New("nothing to serve: enable gateways.http or scheduler in config")
	}

	sc, err := initShared(cfg, logger, false)
	if err != nil {
		return err
	}
	defer sc.Cleanup()
	if err := sc.initAgents(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	var gw *httpapi.Gateway
	if httpEnabled {
		gw = newHTTPGateway(sc)
		g.Go(func() error { return gw.Start(gctx) })
	}

	var sched *scheduler.Scheduler
	if schedEnabled {
		sched, err = newScheduler(sc)
		if err != nil {
			return err
		}
		sched.Start(gctx)
		for _, e := range sched.Entries() {
			logger.Info("scheduled job", slog.String("job", e.Name), slog.String("spec", e.Spec), slog.Time("next", e.Next))
		}
	}

	// Shutdown in reverse construction order once the group context ends.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		if sched != nil {
			<-sched.Stop().Done()
		}
		if gw != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := gw.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("stopping http gateway: %w", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("serve exited with error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func newHTTPGateway(sc *SharedComponents) *httpapi.Gateway {
	hc := sc.Config.Gateways.HTTP
	gwCfg := httpapi.Config{
		ListenAddr:    hc.Addr(),
		EnableDocs:    hc.EnableDocs,
		APIKeys:       hc.APIKeyUserMapping,
		Limiter:       newLimiter(hc.RateLimit),
		HealthChecker: sc.Obs.Health,
		Metrics:       sc.Obs.MetricsOrNil(),
		Tracer:        sc.Obs.TracerOrNoop(),
	}
	if m := sc.Obs.MetricsOrNil(); m != nil {
		gwCfg.MetricsRegistry = m.Registry
		if oc := sc.Config.Observability; oc != nil && oc.Metrics != nil {
			gwCfg.MetricsPath = oc.Metrics.Path
		}
	}
	if len(gwCfg.APIKeys) == 0 {
		sc.Logger.Warn("no API keys configured: every /v1 request will be rejected")
	}

	gw := httpapi.NewGateway(gwCfg, httpapi.Services{
		Assistant: sc.Assistant,
		Workflow:  sc.Workflow,
		Runs:      sc.Store.Runs(),
		Resolver:  sc.Resolver,
		Calendar:  sc.Calendar,
		Joiner:    sc.Joiner,
	}, sc.Logger)

	if hc.WebSocket {
		gw.WithHandler("/v1/ws", ws.NewServer(sc.Assistant, hc.APIKeyUserMapping, sc.Logger).Handler())
	}
	return gw
}

func newLimiter(rl *config.RateLimitConfig) *ratelimit.Limiter {
	if rl == nil {
		return nil
	}
	return ratelimit.New(ratelimit.Config{RequestsPerMinute: rl.RequestsPerMinute, BurstSize: rl.BurstSize})
}

func newScheduler(sc *SharedComponents) (*scheduler.Scheduler, error) {
	var metrics *scheduler.Metrics
	if m := sc.Obs.MetricsOrNil(); m != nil {
		metrics = scheduler.NewMetrics(m.Registry)
	}
	sched := scheduler.New(sc.Resolver.Location(), metrics, sc.Logger)

	jobs := sc.Config.Scheduler
	if err := sched.Add(scheduler.JobJoiner, jobs.Joiner(), func(ctx context.Context) error {
		events, err := sc.Joiner.Join(ctx)
		if len(events) > 0 {
			sc.Logger.InfoContext(ctx, "joiner tick", slog.Int("joined", len(events)))
		}
		return err
	}); err != nil {
		return nil, err
	}

	request := jobs.Request()
	if err := sched.Add(scheduler.JobWorkflow, jobs.WorkflowSpec, func(ctx context.Context) error {
		res, err := sc.Workflow.Run(ctx, request)
		if err != nil {
			return err
		}
		sc.Logger.InfoContext(ctx, "scheduled workflow finished",
			slog.String("run_id", res.Run.ID.String()),
			slog.Int("tokens", res.Run.TokensUsed),
		)
		return nil
	}); err != nil {
		return nil, err
	}
	return sched, nil
}
