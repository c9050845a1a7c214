package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/enesbasbug/async-translator/internal/cli"
	"github.com/enesbasbug/async-translator/internal/language"
	"github.com/enesbasbug/async-translator/internal/tasks"
)

func runTranslate(args []string) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env")
	langs := fs.String("langs", "", "Comma-separated target languages, in order (for example: fr,de)")
	timeout := fs.Duration("timeout", 5*time.Minute, "How long to wait for the task to finish")
	pollInterval := fs.Duration("poll-interval", 500*time.Millisecond, "Status polling interval")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	languages, err := parseLanguagesFlag(*langs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "--langs: %v\n", err)
		return 2
	}

	text, err := readText(fs.Args(), os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read text: %v\n", err)
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
		logger.Error().Err(err).Msg("translate failed to connect to task store")
		fmt.Fprintf(os.Stderr, "Failed to connect to task store: %v\n", err)
		return 1
	}
	defer closeStore()

	orchestrator, pool, closeEvents, err := newOrchestrator(cfg, store, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize translation: %v\n", err)
		return 1
	}
	defer closeEvents()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = pool.Shutdown(shutdownCtx)
	}()

	taskID, err := orchestrator.Submit(ctx, text, languages)
	if err != nil {
		logger.Error().Err(err).Msg("submit translation task failed")
		fmt.Fprintf(os.Stderr, "Submit failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "task %s submitted\n", taskID)

	view, err := waitForTask(ctx, orchestrator, taskID, *pollInterval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Waiting for task %s failed: %v\n", taskID, err)
		return 1
	}

	if err := printJSON(os.Stdout, view); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write result: %v\n", err)
		return 1
	}
	if view.Status != tasks.StatusCompleted {
		return 1
	}
	return 0
}

type statusReader interface {
	Status(ctx context.Context, taskID string) (tasks.View, error)
}

// waitForTask polls until the task reaches a terminal status or ctx ends.
func waitForTask(ctx context.Context, reader statusReader, taskID string, interval time.Duration) (tasks.View, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		view, err := reader.Status(ctx, taskID)
		if err != nil {
			return tasks.View{}, err
		}
		if view.Status.Terminal() {
			return view, nil
		}

		select {
		case <-ctx.Done():
			return view, ctx.Err()
		case <-ticker.C:
		}
	}
}

func parseLanguagesFlag(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("at least one language is required")
	}

	cleaned, badIndex, ok := language.CleanList(values)
	if !ok {
		return nil, fmt.Errorf("duplicate language %q", values[badIndex])
	}
	return cleaned, nil
}

// readText joins the positional arguments, or reads stdin when there are none.
func readText(args []string, stdin io.Reader) (string, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" && stdin != nil {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(string(raw))
	}
	if text == "" {
		return "", fmt.Errorf("text is empty")
	}
	return text, nil
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
