package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/RMahshie/tracelab/internal/repository"
	"github.com/RMahshie/tracelab/pkg/models"
	"github.com/RMahshie/tracelab/pkg/vcsv"
)

// PostgresTraceRepository implements TraceRepository for PostgreSQL
type PostgresTraceRepository struct {
	db *sql.DB
}

// NewPostgresTraceRepository creates a new PostgreSQL trace repository
func NewPostgresTraceRepository(db *sql.DB) repository.TraceRepository {
	return &PostgresTraceRepository{db: db}
}

// storedParam keeps the parsed kind so "2.0" does not come back as an integer
type storedParam struct {
	Key   string     `json:"key"`
	Kind  string     `json:"kind"`
	Value vcsv.Value `json:"value"`
}

// Create inserts a new trace record
func (r *PostgresTraceRepository) Create(ctx context.Context, trace *models.Trace) error {
	query := `
		INSERT INTO traces (id, session_id, name, status, progress, object_key, metadata_row, skip_rows, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		trace.ID,
		trace.SessionID,
		trace.Name,
		trace.Status,
		trace.Progress,
		trace.ObjectKey,
		trace.MetadataRow,
		trace.SkipRows,
		trace.CreatedAt,
		trace.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("trace %s already exists: %w", trace.ID, err)
	}
	return err
}

const traceColumns = `id, session_id, name, status, progress, object_key, metadata_row, skip_rows, error_message, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrace(row rowScanner) (*models.Trace, error) {
	var trace models.Trace
	var objectKey, errorMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&trace.ID,
		&trace.SessionID,
		&trace.Name,
		&trace.Status,
		&trace.Progress,
		&objectKey,
		&trace.MetadataRow,
		&trace.SkipRows,
		&errorMsg,
		&trace.CreatedAt,
		&trace.UpdatedAt,
		&completedAt)
	if err != nil {
		return nil, err
	}

	if objectKey.Valid {
		trace.ObjectKey = &objectKey.String
	}
	if errorMsg.Valid {
		trace.ErrorMsg = &errorMsg.String
	}
	if completedAt.Valid {
		trace.CompletedAt = &completedAt.Time
	}

	return &trace, nil
}

// GetByID retrieves a trace by ID
func (r *PostgresTraceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Trace, error) {
	query := `SELECT ` + traceColumns + ` FROM traces WHERE id = $1`

	trace, err := scanTrace(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return trace, err
}

// GetBySessionID retrieves traces by session ID, newest first
func (r *PostgresTraceRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*models.Trace, error) {
	query := `SELECT ` + traceColumns + ` FROM traces WHERE session_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var traces []*models.Trace
	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, trace)
	}

	return traces, rows.Err()
}

// UpdateStatus updates the status and progress of a trace
func (r *PostgresTraceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	query := `
		UPDATE traces
		SET status = $1::text, progress = $2, updated_at = NOW(),
		    completed_at = CASE WHEN $1::text = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $3`

	return r.execOne(ctx, query, status, progress, id)
}

// UpdateError marks a trace as failed with the given message
func (r *PostgresTraceRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE traces
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2`

	return r.execOne(ctx, query, errorMsg, id)
}

// ClaimProcessing atomically marks a trace as processing. Concurrent claims
// on the same trace are serialized by the row lock, so only one succeeds.
func (r *PostgresTraceRepository) ClaimProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE traces
		SET status = $1, progress = 0, error_message = NULL, completed_at = NULL, updated_at = NOW()
		WHERE id = $2 AND status <> $1`

	err := r.execOne(ctx, query, models.StatusProcessing, id)
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM traces WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return repository.ErrAlreadyProcessing
	}
	return repository.ErrNotFound
}

func (r *PostgresTraceRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// StoreTable replaces the channels and rows of a trace with table
func (r *PostgresTraceRepository) StoreTable(ctx context.Context, id uuid.UUID, table *vcsv.Table) (err error) {
	keys := table.ParamKeys
	if keys == nil {
		keys = []string{}
	}
	paramKeys, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal param keys: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE traces SET param_keys = $1, updated_at = NOW() WHERE id = $2`, string(paramKeys), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM trace_rows WHERE trace_id = $1`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM trace_channels WHERE trace_id = $1`, id); err != nil {
		return err
	}

	for ch, rec := range table.Records {
		params := make([]storedParam, len(rec.Params))
		for i, p := range rec.Params {
			params[i] = storedParam{Key: p.Key, Kind: p.Value.Kind.String(), Value: p.Value}
		}
		var data []byte
		data, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params of channel %d: %w", ch, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO trace_channels (trace_id, channel, signal, params) VALUES ($1, $2, $3, $4)`,
			id, ch, rec.Signal, string(data))
		if err != nil {
			return err
		}
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("trace_rows", "trace_id", "seq", "channel", "time", "value"))
	if err != nil {
		return err
	}
	for seq, row := range table.Rows {
		if _, err = stmt.ExecContext(ctx, id.String(), seq, row.Channel, row.Time, row.Value); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy row %d: %w", seq, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush rows: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return err
	}

	return tx.Commit()
}

// GetChannels retrieves the channel records of a trace in channel order
func (r *PostgresTraceRepository) GetChannels(ctx context.Context, id uuid.UUID) ([]models.TraceChannel, error) {
	records, err := r.records(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.ChannelsFromRecords(records), nil
}

func (r *PostgresTraceRepository) records(ctx context.Context, id uuid.UUID) ([]vcsv.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT signal, params FROM trace_channels WHERE trace_id = $1 ORDER BY channel`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []vcsv.Record
	for rows.Next() {
		var rec vcsv.Record
		var paramsStr string
		if err := rows.Scan(&rec.Signal, &paramsStr); err != nil {
			return nil, err
		}

		var params []storedParam
		if err := json.Unmarshal([]byte(paramsStr), &params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
		for _, p := range params {
			v := p.Value
			if p.Kind == vcsv.KindFloat.String() && v.Kind == vcsv.KindInt {
				v = vcsv.FloatValue(float64(v.Int))
			}
			rec.Params = append(rec.Params, vcsv.Param{Key: p.Key, Value: v})
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetRows retrieves a page of long-form rows in table order
func (r *PostgresTraceRepository) GetRows(ctx context.Context, id uuid.UUID, q repository.RowQuery) (*repository.RowPage, error) {
	var keysStr string
	err := r.db.QueryRowContext(ctx, `SELECT param_keys FROM traces WHERE id = $1`, id).Scan(&keysStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var paramKeys []string
	if err := json.Unmarshal([]byte(keysStr), &paramKeys); err != nil {
		return nil, fmt.Errorf("failed to unmarshal param keys: %w", err)
	}

	records, err := r.records(ctx, id)
	if err != nil {
		return nil, err
	}

	page := &repository.RowPage{Columns: vcsv.Columns(paramKeys)}

	filter := `trace_id = $1 AND ($2 < 0 OR channel = $2)`
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trace_rows WHERE `+filter, id, q.Channel).Scan(&page.Total); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT channel, time, value FROM trace_rows WHERE `+filter+` ORDER BY seq LIMIT $3 OFFSET $4`,
		id, q.Channel, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ch int
		var tm, val float64
		if err := rows.Scan(&ch, &tm, &val); err != nil {
			return nil, err
		}
		if ch < 0 || ch >= len(records) {
			return nil, fmt.Errorf("row references unknown channel %d", ch)
		}

		data, err := vcsv.NewRow(records[ch], ch, tm, val).MarshalJSON()
		if err != nil {
			return nil, err
		}
		page.Rows = append(page.Rows, data)
	}

	return page, rows.Err()
}
