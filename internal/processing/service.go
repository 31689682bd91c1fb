package processing

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/tracelab/internal/repository"
	"github.com/RMahshie/tracelab/internal/storage"
	"github.com/RMahshie/tracelab/pkg/models"
	"github.com/RMahshie/tracelab/pkg/vcsv"
)

// Progress milestones reported while a trace is processed
const (
	ProgressStarted    = 10
	ProgressDownloaded = 30
	ProgressParsed     = 60
	ProgressStored     = 90
	ProgressDone       = 100
)

type TraceService interface {
	ProcessTrace(ctx context.Context, traceID uuid.UUID) error
}

type traceService struct {
	store      storage.ObjectStore
	repository repository.TraceRepository
}

func NewTraceService(store storage.ObjectStore, repo repository.TraceRepository) TraceService {
	return &traceService{
		store:      store,
		repository: repo,
	}
}

// ProcessTrace downloads an uploaded export, reshapes it and stores the long-form table.
// Failures after the trace is found are recorded on the trace and also returned.
func (s *traceService) ProcessTrace(ctx context.Context, traceID uuid.UUID) error {
	logger := log.With().Str("traceID", traceID.String()).Logger()

	// Step 1: Update to processing status
	if err := s.repository.UpdateStatus(ctx, traceID, models.StatusProcessing, ProgressStarted); err != nil {
		return err
	}

	// Step 2: Get trace details
	trace, err := s.repository.GetByID(ctx, traceID)
	if err != nil {
		return err
	}
	if trace.ObjectKey == nil || *trace.ObjectKey == "" {
		return s.fail(ctx, traceID, "Trace has no uploaded file", fmt.Errorf("trace %s has no object key", traceID))
	}

	// Step 3: Download the export
	data, err := s.store.DownloadFile(ctx, *trace.ObjectKey)
	if err != nil {
		return s.fail(ctx, traceID, "Failed to download export", err)
	}
	logger.Debug().Int("bytes", len(data)).Msg("Export downloaded")

	if err := s.repository.UpdateStatus(ctx, traceID, models.StatusProcessing, ProgressDownloaded); err != nil {
		return err
	}

	// Step 4: Parse metadata and numeric block
	table, err := vcsv.Load(bytes.NewReader(data), trace.Layout())
	if err != nil {
		return s.fail(ctx, traceID, fmt.Sprintf("Failed to parse export: %v", err), err)
	}
	logger.Info().
		Int("channels", table.NumChannels()).
		Int("rows", table.Len()).
		Strs("params", table.ParamKeys).
		Msg("Export parsed")

	if err := s.repository.UpdateStatus(ctx, traceID, models.StatusProcessing, ProgressParsed); err != nil {
		return err
	}

	// Step 5: Store the table
	if err := s.repository.StoreTable(ctx, traceID, table); err != nil {
		return s.fail(ctx, traceID, "Failed to store table", err)
	}

	if err := s.repository.UpdateStatus(ctx, traceID, models.StatusProcessing, ProgressStored); err != nil {
		return err
	}

	// Step 6: Mark complete
	if err := s.repository.UpdateStatus(ctx, traceID, models.StatusCompleted, ProgressDone); err != nil {
		return err
	}

	logger.Info().Msg("Trace processed")
	return nil
}

func (s *traceService) fail(ctx context.Context, traceID uuid.UUID, msg string, cause error) error {
	log.Error().Err(cause).Str("traceID", traceID.String()).Msg(msg)
	if err := s.repository.UpdateError(ctx, traceID, msg); err != nil {
		log.Error().Err(err).Str("traceID", traceID.String()).Msg("Failed to record processing error")
	}
	return fmt.Errorf("%s: %w", msg, cause)
}
