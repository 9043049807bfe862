// Package ingest provides the ingest command, which folds recorded
// detections into the baselines.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/baseline"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/datastore"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/runtime"
)

const defaultBatchSize = 500

type options struct {
	format        string
	batchSize     int
	createCameras bool
}

// Result reports what an ingest run did
type Result struct {
	TraceID    string
	Detections int
	Batches    int
}

// Command creates and returns the ingest command
func Command(rt *runtime.Runtime) *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Fold detections from a CSV or JSON lines file into the baselines",
		Long: `Ingest reads detections as CSV (camera_id,class,timestamp) or JSON lines
({"camera_id":..,"class":..,"timestamp":..}) and updates the activity and class
baselines. Timestamps are RFC 3339; hour and weekday are taken in the
timestamp's own offset. Use "-" to read from standard input.

Each batch is applied in one transaction: a failing detection rolls back its
whole batch and stops the run. Earlier batches stay committed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, closeInput, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeInput()

			format, err := resolveFormat(opts.format, args[0])
			if err != nil {
				return err
			}

			result, err := Run(cmd.Context(), rt.Store, rt.Engine, input, format, opts.batchSize, opts.createCameras)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d detections in %d batches (trace %s)\n",
				result.Detections, result.Batches, result.TraceID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", FormatAuto, "Input format: auto, csv or jsonl")
	cmd.Flags().IntVarP(&opts.batchSize, "batch-size", "b", defaultBatchSize, "Detections applied per transaction")
	cmd.Flags().BoolVar(&opts.createCameras, "create-cameras", true, "Register unknown cameras instead of failing")

	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.New(fmt.Errorf("failed to open input: %w", err)).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return f, func() { _ = f.Close() }, nil
}

// Run reads detections from r and applies them in batches of batchSize, each
// batch inside one caller-managed transaction.
func Run(ctx context.Context, store datastore.Interface, engine *baseline.Engine, r io.Reader, format string, batchSize int, createCameras bool) (Result, error) {
	if batchSize < 1 {
		return Result{}, errors.Newf("batch size must be at least 1, got %d", batchSize).
			Component("ingest").
			Category(errors.CategoryValidation).
			Build()
	}

	result := Result{TraceID: uuid.NewString()}
	ctx = logger.WithTraceID(ctx, result.TraceID)
	log := getLog().WithContext(ctx)

	batch := make([]Detection, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := applyBatch(ctx, store, engine, batch, createCameras); err != nil {
			return err
		}
		result.Detections += len(batch)
		result.Batches++
		log.Debug("batch committed",
			logger.Int("batch", result.Batches),
			logger.Int("detections", len(batch)))
		batch = batch[:0]
		return nil
	}

	err := readDetections(r, format, func(line int, d Detection) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, d)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return fmt.Errorf("batch ending at line %d: %w", line, err)
			}
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		log.Error("ingest stopped",
			logger.Int("committed", result.Detections),
			logger.Error(err))
		return result, err
	}

	log.Info("ingest complete",
		logger.Int("detections", result.Detections),
		logger.Int("batches", result.Batches))
	return result, nil
}

// applyBatch updates the baselines for every detection in one transaction.
func applyBatch(ctx context.Context, store datastore.Interface, engine *baseline.Engine, batch []Detection, createCameras bool) error {
	tx, err := store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if createCameras {
		seen := make(map[string]struct{}, 4)
		for _, d := range batch {
			if _, ok := seen[d.CameraID]; ok || d.CameraID == "" {
				continue
			}
			seen[d.CameraID] = struct{}{}
			if err := tx.EnsureCamera(ctx, d.CameraID, ""); err != nil {
				return err
			}
		}
	}

	scope := baseline.CallerTx{Tx: tx}
	for _, d := range batch {
		if err := engine.UpdateBaseline(ctx, scope, d.CameraID, d.Class, d.Timestamp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func getLog() logger.Logger {
	return logger.Global().Module("ingest")
}
