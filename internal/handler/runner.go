package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"marketscope/internal/model"
)

// StateStore persists the engine's processed-through timestamp so a restart
// resumes instead of reprocessing the stream.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, lastTimestamp uint64) error
}

// RunnerConfig controls stream processing behavior.
type RunnerConfig struct {
	// SaveEvery is the number of processed events between state checkpoints.
	SaveEvery int
	// RecomputeFrom forces reprocessing from the given timestamp, ignoring
	// saved state.
	RecomputeFrom uint64
	StateStore    StateStore
}

// Runner feeds a decoded-events JSONL stream through the handler.
type Runner struct {
	cfg     RunnerConfig
	handler *Handler
	logger  *zap.Logger
}

func NewRunner(cfg RunnerConfig, h *Handler, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = 1000
	}
	return &Runner{cfg: cfg, handler: h, logger: logger}
}

// Run processes the events file line by line in stream order. Events at or
// before the resume timestamp are skipped; per-event failures are logged and
// counted rather than aborting the stream.
func (r *Runner) Run(ctx context.Context, inputPath string) error {
	if r.handler == nil {
		return fmt.Errorf("handler is nil")
	}

	startTs, err := r.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	maxTs := startTs
	var total, processed, skipped, failed int

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.EventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			r.logger.Warn("decode event record", zap.Error(err))
			continue
		}

		if record.Timestamp <= startTs {
			skipped++
			continue
		}

		if err := r.handler.HandleEvent(ctx, record); err != nil {
			failed++
			r.logger.Warn("handle event",
				zap.Error(err),
				zap.String("event", record.EventName),
				zap.String("address", record.Address),
				zap.Uint64("log_index", record.LogIndex))
			continue
		}
		processed++

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if processed%r.cfg.SaveEvery == 0 {
			if err := r.saveState(ctx, maxTs); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	if err := r.saveState(ctx, maxTs); err != nil {
		return err
	}

	r.logger.Info("stream complete",
		zap.Int("total", total),
		zap.Int("processed", processed),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

func (r *Runner) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if r.cfg.RecomputeFrom > 0 {
		return r.cfg.RecomputeFrom - 1, nil
	}
	if r.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := r.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (r *Runner) saveState(ctx context.Context, maxTs uint64) error {
	if r.cfg.StateStore == nil || maxTs == 0 {
		return nil
	}
	return r.cfg.StateStore.Save(ctx, maxTs)
}
