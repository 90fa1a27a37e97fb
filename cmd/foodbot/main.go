package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodbot/internal/config"
	"foodbot/internal/delivery"
	"foodbot/internal/dispatch"
	"foodbot/internal/gateway"
	"foodbot/internal/intent"
	"foodbot/internal/metrics"
	"foodbot/internal/persona"
	"foodbot/internal/policy"
	"foodbot/internal/prompt"
	"foodbot/internal/provider"
	"foodbot/internal/ratelimit"
	"foodbot/internal/webhook"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "foodbot",
		Short: "foodbot: LINE food & health assistant",
		Long:  "foodbot relays LINE webhook events to Gemini and answers food and nutrition questions in Thai.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.foodbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			logger.Info("set LINE_CHANNEL_SECRET, LINE_CHANNEL_ACCESS_TOKEN and GEMINI_API_KEY before serving")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long:  "Starts the HTTP server that receives LINE webhook deliveries. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.General.LogLevel),
	}))

	pack, err := persona.Load(cfg.Persona.Path)
	if err != nil {
		return fmt.Errorf("persona: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := ratelimit.New(
		time.Duration(cfg.Limits.ThrottleWindowMs)*time.Millisecond,
		time.Duration(cfg.Limits.IdleTTLMinutes)*time.Minute,
		logger,
	)
	go limiter.Run(ctx)

	gemini := provider.NewGemini(provider.GeminiConfig{
		APIKey:     cfg.Gemini.APIKey,
		APIBase:    cfg.Gemini.APIBase,
		TextModel:  cfg.Gemini.TextModel,
		ImageModel: cfg.Gemini.ImageModel,
		Timeout:    time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
		Logger:     logger,
	})

	gw := gateway.New(gateway.Config{
		Text:        gemini,
		Image:       gemini,
		EmptyAnswer: pack.Messages.EmptyAnswer,
		TruncMark:   pack.Messages.TruncationMark,
		Logger:      logger,
	})

	// A server without credentials still runs and answers 500: the platform
	// retries deliveries, so staying up beats crashing at boot.
	configErr := cfg.MissingCredentials()
	var dispatcher webhook.Dispatcher
	if configErr == nil {
		line, err := delivery.NewLINE(cfg.Line.ChannelAccessToken, logger)
		if err != nil {
			configErr = fmt.Errorf("line client: %w", err)
		} else {
			dispatcher = dispatch.New(dispatch.Config{
				Limiter:    limiter,
				Classifier: intent.NewTriggerClassifier(pack.Triggers),
				Allowlist:  policy.NewAllowlist(pack.Allowlist, logger),
				Prompts:    prompt.NewBuilder(pack.SystemPrompt),
				Gateway:    gw,
				Deliveries: delivery.NewCoordinator(line, logger),
				Messages:   pack.Messages,
				Logger:     logger,
			})
		}
	}
	if configErr != nil {
		logger.Warn("serving without credentials, webhook will answer 500", "err", configErr)
	}

	srvCfg := webhook.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		Path:       cfg.Server.Path,
		ConfigErr:  configErr,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	if cfg.Metrics.Enabled {
		srvCfg.Metrics = metrics.Collector.Handler()
		srvCfg.MetricsPath = cfg.Metrics.Endpoint
	}

	logger.Info("foodbot starting", "version", version)
	return webhook.New(srvCfg).Start(ctx)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and backend health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			if err := cfg.MissingCredentials(); err != nil {
				logger.Info("credentials", "ok", false, "err", err)
			} else {
				logger.Info("credentials", "ok", true)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			gemini := provider.NewGemini(provider.GeminiConfig{
				APIKey:  cfg.Gemini.APIKey,
				APIBase: cfg.Gemini.APIBase,
				Logger:  logger,
			})
			if err := gemini.Healthy(ctx); err != nil {
				logger.Info("backend", "name", gemini.Name(), "healthy", false, "err", err)
			} else {
				logger.Info("backend", "name", gemini.Name(), "healthy", true)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. server.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. server.port 9090)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
