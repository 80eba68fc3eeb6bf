package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
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
	lambdatransport "github.com/awmpietro/golang-execution-tracer/internal/transport/lambdatransport"
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

	obs := tracer.NewAsyncObserver(tracer.NewLogObserver(logger), cfg.ObsBuffer)
	defer obs.Close()
	registry := tracer.NewRegistry(tracer.WithRegistryObserver(obs), tracer.WithLogger(logger))

	redirectCfg, err := cfg.RedirectConfig()
	if err != nil {
		logger.Fatal("redirect config", zap.Error(err))
	}
	engine := rules.NewEngine(rules.WithMaxSteps(cfg.RulesMaxSteps))
	policy, err := redirect.NewPolicy(redirectCfg)
	if err != nil {
		logger.Fatal("redirect policy", zap.Error(err))
	}
	ic := intercept.New(catalog.Default(), policy.WithEngine(engine).WithLogger(logger), intercept.WithRegistry(registry), intercept.WithLogger(logger))

	svc := app.NewService(registry, ic, rules.NewCompiler(), engine, cache.NewInMemory(cfg.CacheMaxItems),
		app.WithLogger(logger),
		app.WithWorkers(cfg.ExecWorkers),
		app.WithRetries(cfg.ExecRetries),
	)
	h := lambdatransport.NewHandler(svc)

	lambda.Start(h.Route)
}
