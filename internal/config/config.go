package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Config contains runtime configuration required by the service.
type Config struct {
	DatabaseURL      string
	QueueURL         string
	QueueKey         string
	WorkerCount      int
	DisableWorkers   bool
	UseInMemoryQueue bool
	LogLevel         string
}

// Load reads required values from environment variables.
//
// Recognized keys: DATABASE_URL, QUEUE_URL, QUEUE_KEY, WORKER_COUNT,
// DISABLE_WORKERS, USE_INMEMORY_QUEUE, LOG_LEVEL. Any other environment
// variable is simply not read. A malformed WORKER_COUNT is treated as a
// configuration error rather than silently falling back, since it is
// the one recognized key whose default could otherwise mask an
// operator mistake; everything else degrades to a sane default.
func Load() (Config, error) {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return Config{}, errors.New("DATABASE_URL required")
	}

	useInMemory := parseBool(os.Getenv("USE_INMEMORY_QUEUE"), false)

	queueURL := strings.TrimSpace(os.Getenv("QUEUE_URL"))
	if queueURL == "" && !useInMemory {
		return Config{}, errors.New("QUEUE_URL required unless USE_INMEMORY_QUEUE is set")
	}

	queueKey := strings.TrimSpace(os.Getenv("QUEUE_KEY"))
	if queueKey == "" {
		queueKey = "event_queue"
	}

	workerCount := 3
	if raw := strings.TrimSpace(os.Getenv("WORKER_COUNT")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Config{}, errors.New("WORKER_COUNT must be an integer >= 1")
		}
		workerCount = n
	}

	logLevel := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "info"
	}

	return Config{
		DatabaseURL:      dbURL,
		QueueURL:         queueURL,
		QueueKey:         queueKey,
		WorkerCount:      workerCount,
		DisableWorkers:   parseBool(os.Getenv("DISABLE_WORKERS"), false),
		UseInMemoryQueue: useInMemory,
		LogLevel:         logLevel,
	}, nil
}

func parseBool(raw string, fallback bool) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
