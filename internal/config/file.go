package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Redirect struct {
		SkipHosts []string          `yaml:"skip_hosts"`
		Overrides map[string]string `yaml:"overrides"`
		RulesFile string            `yaml:"rules_file"`
	} `yaml:"redirect"`
	Execution struct {
		Workers int  `yaml:"workers"`
		Retries *int `yaml:"retries"`
	} `yaml:"execution"`
}

func loadFile(path string, rt *Runtime) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	rt.Redirect.SkipHosts = append(rt.Redirect.SkipHosts, fc.Redirect.SkipHosts...)
	for host, addr := range fc.Redirect.Overrides {
		if host == "" || addr == "" {
			return fmt.Errorf("config file %s: invalid override %q=%q", path, host, addr)
		}
		rt.Redirect.Overrides[host] = addr
	}
	if f := fc.Redirect.RulesFile; f != "" {
		// relative to the config file
		if !filepath.IsAbs(f) {
			f = filepath.Join(filepath.Dir(path), f)
		}
		rt.Redirect.RulesFile = f
	}
	if fc.Execution.Workers > 0 {
		rt.ExecWorkers = fc.Execution.Workers
	}
	if r := fc.Execution.Retries; r != nil && *r >= 0 {
		rt.ExecRetries = *r
	}
	return nil
}
