package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rubenqba/llm-assistant-api/internal/state"
	"github.com/rubenqba/llm-assistant-api/internal/types"
)

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadListCmd, threadShowCmd)
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Inspect conversation threads",
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewCheckpointStore(cfg.DataDir)

		ctx := context.Background()
		threads, err := store.Threads(ctx)
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}
		if len(threads) == 0 {
			fmt.Println("No threads found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "THREAD\tENTRIES\tUPDATED")
		for _, t := range threads {
			count, err := store.Count(ctx, t.Thread)
			if err != nil {
				count = 0
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n",
				t.Thread,
				count,
				t.UpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var threadShowCmd = &cobra.Command{
	Use:   "show <thread>",
	Short: "Print a thread's conversation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewCheckpointStore(cfg.DataDir)

		history, err := store.History(context.Background(), types.ThreadID(args[0]))
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		if len(history) == 0 {
			fmt.Println("No messages in this thread.")
			return nil
		}
		for _, msg := range history {
			fmt.Fprintf(os.Stdout, "[%s] %s\n", msg.Role, msg.Content)
		}
		return nil
	},
}
