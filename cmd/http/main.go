package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/awmpietro/golang-execution-tracer/internal/app"
	"github.com/awmpietro/golang-execution-tracer/internal/catalog"
	"github.com/awmpietro/golang-execution-tracer/internal/config"
	"github.com/awmpietro/golang-execution-tracer/internal/intercept"
	"github.com/awmpietro/golang-execution-tracer/internal/logging"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect/rules"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect/rules/cache"
	"github.com/awmpietro/golang-execution-tracer/internal/tracer"
	httptransport "github.com/awmpietro/golang-execution-tracer/internal/transport/httptransport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	promObs, err := tracer.NewPrometheusObserver(reg)
	if err != nil {
		logger.Fatal("register metrics", zap.Error(err))
	}
	obs := tracer.NewAsyncObserver(tracer.Observers{promObs, tracer.NewLogObserver(logger)}, cfg.ObsBuffer)
	defer obs.Close()

	registry := tracer.NewRegistry(tracer.WithRegistryObserver(obs), tracer.WithLogger(logger))

	redirectCfg, err := cfg.RedirectConfig()
	if err != nil {
		logger.Fatal("redirect config", zap.Error(err))
	}
	policy, err := redirect.NewPolicy(redirectCfg)
	if err != nil {
		logger.Fatal("redirect policy", zap.Error(err))
	}
	engine := rules.NewEngine(rules.WithMaxSteps(cfg.RulesMaxSteps))
	policy = policy.WithEngine(engine).WithLogger(logger)

	cat := catalog.Default()
	logger.Info("replacement catalog built", zap.Int("entries", cat.Len()))
	ic := intercept.New(cat, policy, intercept.WithRegistry(registry), intercept.WithLogger(logger))

	svc := app.NewService(registry, ic, rules.NewCompiler(), engine, cache.NewInMemory(cfg.CacheMaxItems),
		app.WithLogger(logger),
		app.WithWorkers(cfg.ExecWorkers),
		app.WithRetries(cfg.ExecRetries),
	)
	h := httptransport.NewHandler(svc)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
