package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/awmpietro/golang-execution-tracer/internal/action"
	"github.com/awmpietro/golang-execution-tracer/internal/app"
	"github.com/awmpietro/golang-execution-tracer/internal/catalog"
	"github.com/awmpietro/golang-execution-tracer/internal/config"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect/rules"
	"github.com/awmpietro/golang-execution-tracer/internal/redirect/rules/cache"
	"github.com/awmpietro/golang-execution-tracer/internal/tracer"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tracectl",
		Short:         "Inspect redirect decisions, the replacement catalog and auth setup graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDecideCmd(), newCatalogCmd(), newAuthGraphCmd())
	return root
}

func newDecideCmd() *cobra.Command {
	var rulesFile string
	var debug bool

	cmd := &cobra.Command{
		Use:   "decide HOST",
		Short: "Print the redirect decision for HOST under the current configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rc, err := cfg.RedirectConfig()
			if err != nil {
				return err
			}
			policy, err := redirect.NewPolicy(rc)
			if err != nil {
				return err
			}

			var opts app.DecideOptions
			opts.Debug = debug
			if rulesFile != "" {
				dot, err := os.ReadFile(rulesFile)
				if err != nil {
					return fmt.Errorf("read rules: %w", err)
				}
				opts.RulesDOT = string(dot)
			}

			engine := rules.NewEngine(rules.WithMaxSteps(cfg.RulesMaxSteps))
			svc := app.NewService(tracer.NewRegistry(), staticPolicy{policy.WithEngine(engine)}, rules.NewCompiler(), engine, cache.NewInMemory(1))
			res, err := svc.Decide(args[0], opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules", "", "DOT rule graph to evaluate instead of the configured one")
	cmd.Flags().BoolVar(&debug, "debug", false, "include the rule evaluation trace")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the built-in replacement catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := catalog.Default().Entries()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tROUTINE\tREPLACEMENT\tCATEGORY\tKIND\tFILTER")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Key, e.Replacement, e.Category, e.Kind, e.Filter)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func newAuthGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authgraph FILE",
		Short: "Validate an action schema (JSON) and print its auth setup graph as DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var s action.Schema
			if err := json.Unmarshal(b, &s); err != nil {
				return fmt.Errorf("parse schema: %w", err)
			}
			if err := s.Validate(); err != nil {
				return err
			}
			g, err := s.AuthGraph()
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), g.String())
			return err
		},
	}
}

type staticPolicy struct {
	p *redirect.Policy
}

func (s staticPolicy) Policy() *redirect.Policy { return s.p }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
