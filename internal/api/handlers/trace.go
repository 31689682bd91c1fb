package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/tracelab/internal/config"
	"github.com/RMahshie/tracelab/internal/processing"
	"github.com/RMahshie/tracelab/internal/repository"
	"github.com/RMahshie/tracelab/internal/storage"
	"github.com/RMahshie/tracelab/pkg/models"
	"github.com/RMahshie/tracelab/pkg/vcsv"
)

// TraceHandler handles trace-related HTTP requests
type TraceHandler struct {
	repo       repository.TraceRepository
	store      storage.ObjectStore
	processSvc processing.TraceService
	cfg        config.TraceConfig
}

// NewTraceHandler creates a new trace handler
func NewTraceHandler(repo repository.TraceRepository, store storage.ObjectStore, processSvc processing.TraceService, cfg config.TraceConfig) *TraceHandler {
	return &TraceHandler{
		repo:       repo,
		store:      store,
		processSvc: processSvc,
		cfg:        cfg,
	}
}

// CreateTrace registers a new trace and returns an upload URL
func (h *TraceHandler) CreateTrace(ctx context.Context, req *models.CreateTraceRequest) (*models.CreateTraceResponse, error) {
	log.Info().Int64("fileSize", req.Body.FileSize).Str("name", req.Body.Name).Msg("Creating new trace")

	if req.Body.FileSize > h.cfg.MaxUploadBytes {
		return nil, huma.Error400BadRequest(
			fmt.Sprintf("Export too large. The limit is %d bytes.", h.cfg.MaxUploadBytes), nil)
	}

	layout := h.cfg.Layout
	if req.Body.MetadataRow > 0 {
		layout.MetadataRow = req.Body.MetadataRow
	}
	if req.Body.SkipRows > 0 {
		layout.SkipRows = req.Body.SkipRows
	}
	if err := layout.Validate(); err != nil {
		return nil, huma.Error400BadRequest("Invalid file layout", err)
	}

	traceID := uuid.New()
	objectKey := fmt.Sprintf("traces/%s.vcsv", traceID)

	uploadURL, err := h.store.GenerateUploadURL(ctx, objectKey, req.Body.MimeType)
	if err != nil {
		if strings.Contains(err.Error(), "invalid content type") {
			return nil, huma.Error400BadRequest("Export format not supported.", err)
		}
		return nil, huma.Error500InternalServerError("Failed to prepare upload", err)
	}

	now := time.Now()
	trace := &models.Trace{
		ID:          traceID.String(),
		SessionID:   req.Body.SessionID,
		Name:        req.Body.Name,
		Status:      models.StatusPending,
		Progress:    0,
		ObjectKey:   &objectKey,
		MetadataRow: layout.MetadataRow,
		SkipRows:    layout.SkipRows,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.repo.Create(ctx, trace); err != nil {
		return nil, huma.Error500InternalServerError("Failed to create trace", err)
	}

	log.Info().Str("traceID", trace.ID).Str("objectKey", objectKey).Msg("Trace created, returning upload URL")
	return &models.CreateTraceResponse{
		Body: models.CreateTraceResponseBody{
			ID:        trace.ID,
			UploadURL: uploadURL,
			ExpiresIn: int(storage.UploadURLExpiry.Seconds()),
		},
	}, nil
}

// GetTraceStatus returns the current status of a trace
func (h *TraceHandler) GetTraceStatus(ctx context.Context, req *models.GetTraceStatusRequest) (*models.GetTraceStatusResponse, error) {
	traceID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid trace ID", err)
	}

	trace, err := h.repo.GetByID(ctx, traceID)
	if err != nil {
		return nil, lookupError(err)
	}

	return &models.GetTraceStatusResponse{
		Body: models.GetTraceStatusResponseBody{
			ID:       trace.ID,
			Status:   trace.Status,
			Progress: trace.Progress,
			Message:  statusMessage(trace.Status, trace.Progress),
			Error:    trace.ErrorMsg,
		},
	}, nil
}

// StartProcessing starts processing an uploaded export in the background
func (h *TraceHandler) StartProcessing(ctx context.Context, req *models.StartProcessingRequest) (*models.StartProcessingResponse, error) {
	traceID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid trace ID", err)
	}

	if err := h.repo.ClaimProcessing(ctx, traceID); err != nil {
		if errors.Is(err, repository.ErrAlreadyProcessing) {
			return nil, huma.Error409Conflict("Trace is already being processed")
		}
		return nil, lookupError(err)
	}

	log.Info().Str("traceID", traceID.String()).Msg("Starting background processing")
	go func() {
		// Failures are recorded on the trace by the service
		if err := h.processSvc.ProcessTrace(context.Background(), traceID); err != nil {
			log.Warn().Err(err).Str("traceID", traceID.String()).Msg("Background processing failed")
		}
	}()

	resp := &models.StartProcessingResponse{}
	resp.Body.Message = "Processing started successfully"
	return resp, nil
}

// GetTraceRows returns a page of the long-form table of a processed trace
func (h *TraceHandler) GetTraceRows(ctx context.Context, req *models.GetTraceRowsRequest) (*models.GetTraceRowsResponse, error) {
	traceID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid trace ID", err)
	}

	trace, err := h.repo.GetByID(ctx, traceID)
	if err != nil {
		return nil, lookupError(err)
	}
	if trace.Status != models.StatusCompleted {
		return nil, huma.Error409Conflict("Trace not yet processed",
			fmt.Errorf("trace status is %s", trace.Status))
	}

	channels, err := h.repo.GetChannels(ctx, traceID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get channels", err)
	}
	if req.Channel >= len(channels) {
		return nil, huma.Error400BadRequest(
			fmt.Sprintf("Channel %d out of range, trace has %d channels", req.Channel, len(channels)))
	}

	page, err := h.repo.GetRows(ctx, traceID, repository.RowQuery{
		Channel: req.Channel,
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		return nil, lookupError(err)
	}

	return &models.GetTraceRowsResponse{
		Body: models.GetTraceRowsResponseBody{
			ID:       trace.ID,
			Columns:  page.Columns,
			Channels: channels,
			Rows:     page.Rows,
			Total:    page.Total,
		},
	}, nil
}

// ParseTrace reshapes an inline metadata line and numeric block
func (h *TraceHandler) ParseTrace(ctx context.Context, req *models.ParseTraceRequest) (*models.ParseTraceResponse, error) {
	table, err := vcsv.Parse(req.Body.Header, req.Body.Data)
	if err != nil {
		if errors.Is(err, vcsv.ErrParse) || errors.Is(err, vcsv.ErrSchemaMismatch) {
			return nil, huma.Error422UnprocessableEntity(err.Error(), err)
		}
		return nil, huma.Error500InternalServerError("Failed to parse trace", err)
	}

	rows, err := models.EncodeRows(table.Rows)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to encode rows", err)
	}

	return &models.ParseTraceResponse{
		Body: models.ParseTraceResponseBody{
			Columns:  table.Columns(),
			Channels: models.ChannelsFromRecords(table.Records),
			Rows:     rows,
		},
	}, nil
}

func lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return huma.Error404NotFound("Trace not found", err)
	}
	return huma.Error500InternalServerError("Failed to get trace", err)
}

// statusMessage creates a human-readable status message
func statusMessage(status string, progress int) string {
	switch status {
	case models.StatusPending:
		return "Waiting for upload to be processed..."
	case models.StatusProcessing:
		switch {
		case progress < processing.ProgressDownloaded:
			return "Starting..."
		case progress < processing.ProgressParsed:
			return "Parsing channel metadata..."
		case progress < processing.ProgressStored:
			return "Storing long-form rows..."
		default:
			return "Finalizing..."
		}
	case models.StatusCompleted:
		return "Trace ready"
	case models.StatusFailed:
		return "Processing failed"
	default:
		return "Unknown status"
	}
}
