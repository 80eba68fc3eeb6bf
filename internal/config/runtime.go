package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/awmpietro/golang-execution-tracer/internal/redirect"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect/rules"
)

type Runtime struct {
	HTTPAddr      string
	LogLevel      string
	CacheMaxItems int
	RulesMaxSteps int
	ObsBuffer     int
	ExecWorkers   int
	ExecRetries   int
	Redirect      Redirect
}

type Redirect struct {
	SkipHosts []string
	Overrides map[string]string
	RulesFile string
}

// Load reads TRACER_CONFIG_FILE, when set, and applies the environment on
// top of it.
func Load() (Runtime, error) {
	rt := Runtime{
		HTTPAddr:      ":8080",
		LogLevel:      "info",
		CacheMaxItems: 1024,
		RulesMaxSteps: rules.DefaultMaxSteps,
		ObsBuffer:     4096,
		ExecWorkers:   4,
		ExecRetries:   1,
		Redirect:      Redirect{Overrides: map[string]string{}},
	}

	if path := os.Getenv("TRACER_CONFIG_FILE"); path != "" {
		if err := loadFile(path, &rt); err != nil {
			return Runtime{}, err
		}
	}

	rt.HTTPAddr = getenv("HTTP_ADDR", rt.HTTPAddr)
	rt.LogLevel = getenv("LOG_LEVEL", rt.LogLevel)
	rt.CacheMaxItems = getenvInt("RULES_CACHE_MAX_ITEMS", rt.CacheMaxItems, 1)
	rt.RulesMaxSteps = getenvInt("RULES_MAX_STEPS", rt.RulesMaxSteps, 1)
	rt.ObsBuffer = getenvInt("OBS_BUFFER", rt.ObsBuffer, 1)
	rt.ExecWorkers = getenvInt("EXEC_WORKERS", rt.ExecWorkers, 1)
	rt.ExecRetries = getenvInt("EXEC_RETRIES", rt.ExecRetries, 0)
	rt.Redirect.RulesFile = getenv("REDIRECT_RULES_FILE", rt.Redirect.RulesFile)

	if raw := os.Getenv("REDIRECT_SKIP_HOSTS"); raw != "" {
		rt.Redirect.SkipHosts = splitList(raw)
	}
	if raw := os.Getenv("REDIRECT_OVERRIDES"); raw != "" {
		o, err := ParseOverrides(raw)
		if err != nil {
			return Runtime{}, err
		}
		for k, v := range o {
			rt.Redirect.Overrides[k] = v
		}
	}
	return rt, nil
}

// ParseOverrides parses "host=address" pairs separated by commas.
func ParseOverrides(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range splitList(raw) {
		host, addr, ok := strings.Cut(pair, "=")
		host, addr = strings.TrimSpace(host), strings.TrimSpace(addr)
		if !ok || host == "" || addr == "" {
			return nil, fmt.Errorf("invalid override %q: expected host=address", pair)
		}
		out[host] = addr
	}
	return out, nil
}

// RedirectConfig builds the policy configuration, compiling the rules file
// when one is configured.
func (r Runtime) RedirectConfig() (redirect.Config, error) {
	cfg := redirect.Config{
		SkipHosts: r.Redirect.SkipHosts,
		Overrides: r.Redirect.Overrides,
	}
	if r.Redirect.RulesFile == "" {
		return cfg, nil
	}
	dot, err := os.ReadFile(r.Redirect.RulesFile)
	if err != nil {
		return redirect.Config{}, fmt.Errorf("read rules file: %w", err)
	}
	g, err := rules.NewCompiler().Compile(string(dot))
	if err != nil {
		return redirect.Config{}, fmt.Errorf("compile rules file %s: %w", r.Redirect.RulesFile, err)
	}
	cfg.Rules = g
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback, min int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return fallback
	}
	return v
}
