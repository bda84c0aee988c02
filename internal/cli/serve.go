package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/soyeahso/rentdesk/internal/config"
	"github.com/soyeahso/rentdesk/internal/gateway"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			if err := failOnIssues(&cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()
			a.Start()

			configureGin(cfg.Logging.Level)
			srv := gateway.New(cfg.Server, log,
				gateway.WithOrchestrator(a.orchestrator),
				gateway.WithSessions(a.sessions),
				gateway.WithHistory(a.history),
				gateway.WithTools(a.catalog, a.backend),
				gateway.WithFilter(a.filter),
				gateway.WithHooks(a.hooks),
				gateway.WithMetrics(a.metrics),
			)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// configureGin routes gin's own output through the logger and keeps it in
// release mode unless debugging.
func configureGin(level string) {
	if level == "debug" || level == "trace" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = log.Sub("gin").Writer("debug")
	gin.DefaultErrorWriter = log.Sub("gin").Writer("error")
}

// failOnIssues logs every validation issue and fails when there is any.
func failOnIssues(cfg *config.Config) error {
	issues := config.Validate(cfg)
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	if len(issues) > 0 {
		return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return nil
}
