package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rubenqba/llm-assistant-api/internal/agent"
	"github.com/rubenqba/llm-assistant-api/internal/cocktaildb"
	"github.com/rubenqba/llm-assistant-api/internal/gateway"
	"github.com/rubenqba/llm-assistant-api/internal/prompt"
	"github.com/rubenqba/llm-assistant-api/internal/state"
	"github.com/rubenqba/llm-assistant-api/internal/tools"
	"github.com/rubenqba/llm-assistant-api/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("thread", "", "thread to continue (defaults to \"default\")")
	chatCmd.Flags().String("system", "", "system prompt override for this turn")
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one message and stream the reply to stdout",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	threadFlag, _ := cmd.Flags().GetString("thread")
	system, _ := cmd.Flags().GetString("system")
	message := strings.Join(args, " ")

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

	gw := gateway.New(1)
	gw.Queue.SetProcessor(loop.ProcessTurn)
	gw.Start(context.Background())
	defer gw.Stop()

	done := make(chan struct{})
	var turnErr error
	opts := []gateway.TurnOption{
		gateway.WithOnChunk(func(chunk string) error {
			fmt.Print(chunk)
			return nil
		}),
		gateway.WithOnComplete(func(string) {
			fmt.Println()
			close(done)
		}),
		gateway.WithOnError(func(err error) {
			turnErr = err
			close(done)
		}),
	}
	if system != "" {
		opts = append(opts, gateway.WithSystemPrompt(system))
	}

	if _, err := gw.Submit(types.ThreadID(threadFlag), message, opts...); err != nil {
		return err
	}
	<-done
	return turnErr
}
