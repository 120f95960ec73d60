package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/llm"
	"github.com/parleychat/parley/internal/mcp"
	"github.com/parleychat/parley/internal/server"
	"github.com/parleychat/parley/internal/store"
	"github.com/parleychat/parley/internal/tools"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat HTTP server",
	Long: `Run the chat server.

Endpoints:
  POST /chat
  POST /chat/dialogs
  GET  /chat/dialogs
  GET  /models
  GET  /healthz`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}
	if cfg.Server.AuthToken == "" && cfg.Server.AuthSecret == "" {
		return fmt.Errorf("no auth configured: set server.auth_token or server.auth_secret")
	}
	if len(cfg.Models) == 0 {
		return fmt.Errorf("no models configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	registry := tools.NewRegistry()
	if len(cfg.Tools.PythonCommand) > 0 {
		registry.Register(&tools.PythonTool{Command: cfg.Tools.PythonCommand})
	}
	if cfg.Tools.SearchAPIKey != "" {
		registry.Register(&tools.GoogleSearchTool{
			APIKey: cfg.Tools.SearchAPIKey,
			CX:     cfg.Tools.SearchCX,
		})
	}

	var remote *mcp.Client
	if cfg.MCP.URL != "" {
		remote = mcp.NewClient(mcp.Config{
			URL:       cfg.MCP.URL,
			AuthToken: cfg.MCP.AuthToken,
			Timeout:   cfg.MCP.Timeout,
		})
		defer remote.Close()
		log.Info().Str("url", cfg.MCP.URL).Msg("MCP tool server configured")
	}
	router := &tools.Router{Registry: registry, Remote: remote}

	toolModels := make(map[string]bool, len(cfg.Chat.ToolModels))
	for _, m := range cfg.Chat.ToolModels {
		toolModels[m] = true
	}

	providers := make(map[string]chat.ProviderInfo, len(cfg.Providers))
	for name, p := range cfg.Providers {
		providers[name] = chat.ProviderInfo{BaseURL: p.BaseURL, APIKey: p.APIKey}
	}
	models := make(map[string]chat.ModelRoute, len(cfg.Models))
	for name, m := range cfg.Models {
		models[name] = chat.ModelRoute{Provider: m.Provider, BaseURL: m.BaseURL, APIKey: m.APIKey}
	}

	orch := &chat.Orchestrator{
		Resolve: chat.NewProviderResolver(providers, models),
		NewStreamer: func(info chat.ProviderInfo) llm.Streamer {
			return llm.NewClient(info.BaseURL, info.APIKey)
		},
		ToolModels: toolModels,
		Toolset:    chat.NewToolsetCache(cfg.MCP.ToolsCacheTTL, router.Specs),
		Execute:    router.Execute,
		Record: func(ctx context.Context, rec chat.ToolCallRecord) error {
			if rec.DialogID == "" {
				return nil
			}
			return st.CreateToolCallEvent(ctx, store.ToolCallEvent{
				DialogID:      rec.DialogID,
				UserID:        rec.UserID,
				ToolCallID:    rec.ToolCallID,
				ToolName:      rec.ToolName,
				ArgumentsJSON: rec.ArgumentsJSON,
				ResultText:    rec.ResultText,
				ErrorText:     rec.ErrorText,
			})
		},
		MaxRounds: cfg.Chat.MaxToolRounds,
	}

	srv := server.New(cfg, st, orch)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
