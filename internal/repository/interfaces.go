package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/RMahshie/tracelab/pkg/models"
	"github.com/RMahshie/tracelab/pkg/vcsv"
)

// ErrNotFound is returned when a trace does not exist
var ErrNotFound = errors.New("trace not found")

// ErrAlreadyProcessing is returned when a processing claim loses to a running one
var ErrAlreadyProcessing = errors.New("trace is already being processed")

// RowQuery selects a page of long-form rows. A negative Channel selects
// every channel.
type RowQuery struct {
	Channel int
	Limit   int
	Offset  int
}

// RowPage is one page of stored rows, each already encoded as a flat JSON object
type RowPage struct {
	Columns []string
	Rows    []json.RawMessage
	Total   int
}

// TraceRepository defines the interface for trace data operations
type TraceRepository interface {
	Create(ctx context.Context, trace *models.Trace) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trace, error)
	GetBySessionID(ctx context.Context, sessionID string) ([]*models.Trace, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error
	UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error
	// ClaimProcessing moves a trace to processing unless it is there already.
	ClaimProcessing(ctx context.Context, id uuid.UUID) error
	StoreTable(ctx context.Context, id uuid.UUID, table *vcsv.Table) error
	GetChannels(ctx context.Context, id uuid.UUID) ([]models.TraceChannel, error)
	GetRows(ctx context.Context, id uuid.UUID, q RowQuery) (*RowPage, error)
}
