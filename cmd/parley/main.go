package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parley/internal/config"
	"parley/internal/dialogue"
	"parley/internal/llm"
	"parley/internal/logging"
	"parley/internal/prompts"
	"parley/internal/store"
	"parley/internal/tools"
)

const version = "0.3.0"

var (
	// Global flags
	configPath string
	dbPath     string
	verbose    bool

	// Loaded once in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:     "parley",
	Short:   "Parley - a conversational companion that remembers",
	Version: version,
	Long: `Parley is a conversational companion. Each message is routed to one of
a small set of actions: remember facts the user shares, answer from
facts already stored, control music playback, send and search messages,
or simply talk.

Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Store.DatabasePath = dbPath
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// The chat TUI owns the terminal; without a log file its logs
		// have nowhere sensible to go.
		if cmd.Name() == "parley" && cfg.Logging.File == "" {
			logger = zap.NewNop()
			return nil
		}
		logger, err = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			File:   cfg.Logging.File,
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(turnCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime bundles the components a command wires up before doing work.
type runtime struct {
	store   store.Store
	client  llm.Client
	cache   *llm.Cache
	library *prompts.Library
	engine  *dialogue.Engine
}

// buildRuntime opens the store and constructs the engine with every
// configured collaborator. Call Close when done.
func buildRuntime(ctx context.Context) (*runtime, error) {
	st, err := store.NewSQLiteStore(cfg.Store.DatabasePath, logging.Named(logger, "store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	client, err := llm.New(ctx, llm.Options{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.GetLLMTimeout(),
		Retries:  cfg.LLM.Retries,
		Logger:   logging.Named(logger, "llm"),
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to build llm client: %w", err)
	}

	var cache *llm.Cache
	if cfg.Cache.Enabled {
		cache = llm.NewCache(ctx, llm.CacheOptions{
			RedisAddr: cfg.Cache.RedisAddr,
			RedisDB:   cfg.Cache.RedisDB,
			TTL:       cfg.GetCacheTTL(),
			MaxLocal:  cfg.Cache.MaxLocal,
			Logger:    logging.Named(logger, "llm"),
		})
		client = llm.WithCache(client, cache)
	}

	library := prompts.NewLibrary(cfg.Prompts.OverrideDir, logging.Named(logger, "prompts"))

	engine, err := dialogue.NewEngine(dialogue.Options{
		Client:        client,
		Store:         st,
		Dispatcher:    buildDispatcher(),
		Prompts:       library,
		AssistantName: cfg.Persona.Name,
		Style:         cfg.Persona.Style,
		Logger:        logger,
	})
	if err != nil {
		library.Stop()
		if cache != nil {
			_ = cache.Close()
		}
		_ = st.Close()
		return nil, err
	}

	return &runtime{
		store:   st,
		client:  client,
		cache:   cache,
		library: library,
		engine:  engine,
	}, nil
}

// buildDispatcher wires the enabled tool gateways. Nil when no
// capability is configured.
func buildDispatcher() *tools.Dispatcher {
	toolLog := logging.Named(logger, "tools")

	var playback *tools.Playback
	if cfg.Tools.Playback.Enabled {
		gw := tools.NewHTTPGateway(tools.GatewayOptions{
			BaseURL: cfg.Tools.Playback.BaseURL,
			APIKey:  cfg.Tools.Playback.APIKey,
			Timeout: cfg.Tools.Playback.GatewayTimeout(),
		}, toolLog)
		playback = tools.NewPlayback(gw, toolLog)
	}

	var messaging *tools.Messaging
	if cfg.Tools.Messaging.Enabled {
		gw := tools.NewHTTPGateway(tools.GatewayOptions{
			BaseURL: cfg.Tools.Messaging.BaseURL,
			APIKey:  cfg.Tools.Messaging.APIKey,
			Timeout: cfg.Tools.Messaging.GatewayTimeout(),
		}, toolLog)
		messaging = tools.NewMessaging(gw, toolLog)
	}

	if playback == nil && messaging == nil {
		return nil
	}
	return tools.NewDispatcher(playback, messaging, toolLog)
}

func (rt *runtime) Close() {
	rt.library.Stop()
	if rt.cache != nil {
		_ = rt.cache.Close()
	}
	_ = rt.store.Close()
}
