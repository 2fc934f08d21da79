// Command lokiship reads log lines from stdin and ships them to a Loki push
// endpoint through the sink. Configuration comes from the environment (see
// internal/config), optionally seeded from a .env file.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/lostinspiration/loki-sink/internal/config"
	"github.com/lostinspiration/loki-sink/internal/logging"
	"github.com/lostinspiration/loki-sink/pkg/lokisink"
)

func main() {
	// Missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lokiship: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.MinLevel)

	// Tag every stream with this process instance so restarts are
	// distinguishable in the backend.
	labels := map[string]string{"instance": uuid.NewString()}
	for k, v := range cfg.Labels {
		labels[k] = v
	}

	s, err := lokisink.New(cfg.URL,
		lokisink.WithLabels(labels),
		lokisink.WithMinLevel(cfg.MinLevel),
		lokisink.WithBatchLimit(cfg.BatchLimit),
		lokisink.WithFlushInterval(cfg.FlushInterval),
		lokisink.WithTimeout(cfg.Timeout),
		lokisink.WithCompression(cfg.Compress),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lokiship: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(s.Handler())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nlokiship: received %v, flushing...\n", sig)
		s.Close()
		os.Exit(0)
	}()

	fmt.Fprintf(os.Stderr, "lokiship: shipping stdin to %s\n", cfg.URL)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		logger.Info(line)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "lokiship: read: %v\n", err)
	}

	s.Close()
}
