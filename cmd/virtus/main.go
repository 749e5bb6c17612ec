// virtus is a terminal client for the Virtus AI platform: marketplace chat
// with retrieval over uploaded documents.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"

	virtus "github.com/virtus-ai/virtus-go"

	"github.com/virtus-ai/virtus-go/internal/chat"
	"github.com/virtus-ai/virtus-go/internal/config"
	"github.com/virtus-ai/virtus-go/internal/watch"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "Warning: No API key configured. Set VIRTUS_API_KEY or use --api-key.")
	}

	if cfg.WatchDir != "" {
		if err := runWatch(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	session, err := chat.NewSession(cfg, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating session: %v\n", err)
		os.Exit(1)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "virtus> ",
		HistoryFile:     historyPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("virtus - Virtus AI platform chat")
	fmt.Printf("Model: %s | API: %s\n", cfg.Model, cfg.BaseURL)
	fmt.Println("Type /help for commands, /quit to exit.")

	readInput := func(_ string) (string, error) {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return line, err
	}

	if err := session.Run(readInput); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWatch(cfg *config.Config) error {
	if cfg.WatchSource == "" {
		return fmt.Errorf("watch mode requires --watch-source <data-source-id>")
	}

	client := virtus.NewClient(virtus.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	w, err := watch.New(client, cfg.WatchSource, watch.Options{})
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s, uploading to data source %s. Ctrl+C to stop.\n", cfg.WatchDir, cfg.WatchSource)
	return w.Run(ctx, cfg.WatchDir)
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := home + "/.virtus"
	_ = os.MkdirAll(dir, 0755)
	return dir + "/history"
}
