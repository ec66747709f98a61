package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rubenqba/llm-assistant-api/internal/agent"
	"github.com/rubenqba/llm-assistant-api/internal/cocktaildb"
	"github.com/rubenqba/llm-assistant-api/internal/delivery"
	"github.com/rubenqba/llm-assistant-api/internal/format"
	"github.com/rubenqba/llm-assistant-api/internal/gateway"
	"github.com/rubenqba/llm-assistant-api/internal/prompt"
	"github.com/rubenqba/llm-assistant-api/internal/scheduler"
	"github.com/rubenqba/llm-assistant-api/internal/server"
	"github.com/rubenqba/llm-assistant-api/internal/state"
	"github.com/rubenqba/llm-assistant-api/internal/telegram"
	"github.com/rubenqba/llm-assistant-api/internal/tools"
	"github.com/rubenqba/llm-assistant-api/internal/types"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mixologist daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store := state.NewCheckpointStore(cfg.DataDir)

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	prompts, err := prompt.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve, "")
	if err != nil {
		return fmt.Errorf("create prompt builder: %w", err)
	}

	db := cocktaildb.New(cfg.CocktailDB.BaseURL, time.Duration(cfg.CocktailDB.TimeoutSeconds)*time.Second, slog.Default())
	registry := tools.NewRegistry()
	tools.RegisterCocktailTools(registry, db)

	loop := agent.New(provider, prompts, store, registry, cfg.MaxToolRounds, slog.Default())

	gw := gateway.New(int64(cfg.MaxConcurrent))
	gw.Queue.SetProcessor(loop.ProcessTurn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	retry := format.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Format.MaxAttempts
	router := format.New(provider, retry, slog.Default())

	slog.Info("mixologist started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"max_tool_rounds", cfg.MaxToolRounds,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
	)

	// Task store and delivery registry
	taskStore := state.NewTaskStore(filepath.Join(cfg.DataDir, "tasks.json"))
	deliveryReg := delivery.NewRegistry()

	// Telegram frontend
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, store, router, slog.Default())
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")

		deliveryReg.Register("telegram:", adapter.Deliver)
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Scheduler: fire task prompts as turns, format for the task's channel,
	// and hand the result to whichever frontend owns the thread.
	sched := scheduler.New(taskStore, func(thread types.ThreadID, channelName, taskPrompt string) {
		channel, err := format.ParseChannel(channelName)
		if err != nil {
			slog.Error("task has unknown channel", "thread", string(thread), "channel", channelName)
			return
		}
		_, err = gw.Submit(thread, taskPrompt, gateway.WithOnComplete(func(response string) {
			if response == "" {
				return // assistant decided not to respond
			}
			segments, err := router.Format(ctx, response, channel)
			if err != nil {
				slog.Warn("task formatting failed, using fallback", "thread", string(thread), "error", err)
				segments = format.Fallback(response, channel)
			}
			if err := deliveryReg.Deliver(thread, segments); err != nil {
				slog.Error("task delivery failed", "thread", string(thread), "error", err)
			}
		}))
		if err != nil {
			slog.Error("task submit failed", "thread", string(thread), "error", err)
		}
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started")

	// HTTP API
	api := server.New(gw, store, router, taskStore, db, slog.Default())
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api,
	}
	go func() {
		slog.Info("http server started", "listen", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}
	gw.Queue.WaitIdle(10 * time.Second)
	return nil
}
