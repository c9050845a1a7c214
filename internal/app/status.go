package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/enesbasbug/async-translator/internal/cli"
	"github.com/enesbasbug/async-translator/internal/tasks"
)

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "status requires one task id")
		return 2
	}
	taskID := strings.TrimSpace(fs.Arg(0))
	if taskID == "" {
		fmt.Fprintln(os.Stderr, "task id must not be empty")
		return 2
	}

	cfg, logger, closeLog, code := loadRuntime(envLoader)
	if code != 0 {
		return code
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("status failed to connect to task store")
		fmt.Fprintf(os.Stderr, "Failed to connect to task store: %v\n", err)
		return 1
	}
	defer closeStore()

	task, err := store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			fmt.Fprintln(os.Stderr, "Task not found")
			return 1
		}
		logger.Error().Err(err).Str("task_id", taskID).Msg("load translation task failed")
		fmt.Fprintf(os.Stderr, "Failed to load task: %v\n", err)
		return 1
	}

	if err := printJSON(os.Stdout, task.View()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write result: %v\n", err)
		return 1
	}
	return 0
}
