package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/soyeahso/rentdesk/internal/config"
	"github.com/soyeahso/rentdesk/internal/tools"
	"github.com/soyeahso/rentdesk/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show rentdesk configuration summary and tool backend reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rentdesk %s (commit %s)\n\n", version.Version, version.Commit)
			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n\n", paths.Data)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}
			printSummary(out, cfg)

			if probe {
				fmt.Fprintf(out, "Probe:   %s\n", probeTools(cmd.Context(), cfg))
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", true, "check that the tool backend answers")
	return cmd
}

func printSummary(w io.Writer, cfg config.Config) {
	fmt.Fprintf(w, "Server:  %s apiKey=%v\n", bindLabel(cfg.Server), cfg.Server.APIKey != "")
	fmt.Fprintf(w, "Model:   provider=%s model=%s\n", cfg.Model.Provider, cfg.Model.Model)
	fmt.Fprintf(w, "Tools:   transport=%s url=%s validateArgs=%v\n",
		cfg.Tools.Transport, cfg.Tools.BaseURL, cfg.Tools.ArgValidation())
	fmt.Fprintf(w, "Agent:   catalogCap=%d maxToolCalls=%d language=%s\n",
		cfg.Agent.CatalogCap, cfg.Agent.MaxToolCalls, cfg.Agent.DefaultLanguage)
	fmt.Fprintf(w, "Session: store=%s ttl=%ds sweep=%q\n",
		cfg.Session.Store, cfg.Session.DefaultTTLSeconds, cfg.Session.SweepSchedule)
	history := cfg.History.Store
	if history == "sqlite" {
		history += " " + paths.HistoryDB(cfg.History.Path)
	}
	fmt.Fprintf(w, "History: %s\n", history)
}

func bindLabel(s config.ServerConfig) string {
	host := s.Bind
	if s.Bind == "custom" {
		host = s.CustomBindHost
	}
	return fmt.Sprintf("%s:%d", host, s.Port)
}

// probeTools reports whether the tool backend answers a health check.
func probeTools(ctx context.Context, cfg config.Config) string {
	backend, err := tools.NewBackendFromConfig(cfg.Tools, log)
	if err != nil {
		return err.Error()
	}
	if c, ok := backend.(interface{ Close() error }); ok {
		defer c.Close()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	if err := backend.Health(ctx); err != nil {
		return fmt.Sprintf("%s unreachable: %v", backend.Name(), err)
	}
	return fmt.Sprintf("%s ok in %s", backend.Name(), time.Since(start).Round(time.Millisecond))
}
