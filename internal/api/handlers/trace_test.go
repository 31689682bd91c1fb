package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/tracelab/internal/config"
	"github.com/RMahshie/tracelab/internal/repository"
	"github.com/RMahshie/tracelab/pkg/models"
	"github.com/RMahshie/tracelab/pkg/vcsv"
)

// MockTraceRepository implements repository.TraceRepository for testing
type MockTraceRepository struct {
	mock.Mock
}

func (m *MockTraceRepository) Create(ctx context.Context, trace *models.Trace) error {
	args := m.Called(ctx, trace)
	return args.Error(0)
}

func (m *MockTraceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Trace, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trace), args.Error(1)
}

func (m *MockTraceRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*models.Trace, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]*models.Trace), args.Error(1)
}

func (m *MockTraceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	args := m.Called(ctx, id, status, progress)
	return args.Error(0)
}

func (m *MockTraceRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	args := m.Called(ctx, id, errorMsg)
	return args.Error(0)
}

func (m *MockTraceRepository) ClaimProcessing(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTraceRepository) StoreTable(ctx context.Context, id uuid.UUID, table *vcsv.Table) error {
	args := m.Called(ctx, id, table)
	return args.Error(0)
}

func (m *MockTraceRepository) GetChannels(ctx context.Context, id uuid.UUID) ([]models.TraceChannel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TraceChannel), args.Error(1)
}

func (m *MockTraceRepository) GetRows(ctx context.Context, id uuid.UUID, q repository.RowQuery) (*repository.RowPage, error) {
	args := m.Called(ctx, id, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.RowPage), args.Error(1)
}

// MockObjectStore implements storage.ObjectStore for testing
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) UploadFile(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func (m *MockObjectStore) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockObjectStore) DeleteFile(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockTraceService implements processing.TraceService for testing
type MockTraceService struct {
	mock.Mock
}

func (m *MockTraceService) ProcessTrace(ctx context.Context, traceID uuid.UUID) error {
	args := m.Called(ctx, traceID)
	return args.Error(0)
}

func testConfig() config.TraceConfig {
	return config.TraceConfig{
		Layout:              vcsv.DefaultLayout(),
		MaxUploadBytes:      50 * 1024 * 1024,
		DefaultWindowLength: 4096,
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.True(t, errors.As(err, &se), "expected a huma status error, got %v", err)
	return se.GetStatus()
}

func newCreateRequest(size int64, mime string) *models.CreateTraceRequest {
	req := &models.CreateTraceRequest{}
	req.Body.SessionID = "test-session-123"
	req.Body.Name = "sweep.vcsv"
	req.Body.FileSize = size
	req.Body.MimeType = mime
	return req
}

func TestCreateTrace(t *testing.T) {
	tests := []struct {
		name       string
		input      *models.CreateTraceRequest
		mockSetup  func(*MockTraceRepository, *MockObjectStore)
		wantStatus int
		wantLayout vcsv.Layout
	}{
		{
			name:  "valid export",
			input: newCreateRequest(5*1024*1024, "text/csv"),
			mockSetup: func(repo *MockTraceRepository, store *MockObjectStore) {
				store.On("GenerateUploadURL", mock.Anything, mock.MatchedBy(func(key string) bool {
					return len(key) > len("traces/") && key[:len("traces/")] == "traces/"
				}), "text/csv").Return("https://example.com/upload", nil)
				repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Trace")).Return(nil)
			},
			wantLayout: vcsv.DefaultLayout(),
		},
		{
			name: "custom layout",
			input: func() *models.CreateTraceRequest {
				req := newCreateRequest(1024, "application/octet-stream")
				req.Body.MetadataRow = 3
				req.Body.SkipRows = 8
				return req
			}(),
			mockSetup: func(repo *MockTraceRepository, store *MockObjectStore) {
				store.On("GenerateUploadURL", mock.Anything, mock.Anything, "application/octet-stream").Return("https://example.com/upload", nil)
				repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Trace")).Return(nil)
			},
			wantLayout: vcsv.Layout{MetadataRow: 3, SkipRows: 8},
		},
		{
			name: "metadata row after numeric block",
			input: func() *models.CreateTraceRequest {
				req := newCreateRequest(1024, "text/csv")
				req.Body.MetadataRow = 7
				return req
			}(),
			mockSetup:  func(repo *MockTraceRepository, store *MockObjectStore) {},
			wantStatus: 400,
		},
		{
			name:       "file too large",
			input:      newCreateRequest(60*1024*1024, "text/csv"),
			mockSetup:  func(repo *MockTraceRepository, store *MockObjectStore) {},
			wantStatus: 400,
		},
		{
			name:  "unsupported content type",
			input: newCreateRequest(1024, "text/csv"),
			mockSetup: func(repo *MockTraceRepository, store *MockObjectStore) {
				store.On("GenerateUploadURL", mock.Anything, mock.Anything, "text/csv").
					Return("", fmt.Errorf("invalid content type: text/csv"))
			},
			wantStatus: 400,
		},
		{
			name:  "presign failure",
			input: newCreateRequest(1024, "text/csv"),
			mockSetup: func(repo *MockTraceRepository, store *MockObjectStore) {
				store.On("GenerateUploadURL", mock.Anything, mock.Anything, "text/csv").Return("", assert.AnError)
			},
			wantStatus: 500,
		},
		{
			name:  "database failure",
			input: newCreateRequest(1024, "text/csv"),
			mockSetup: func(repo *MockTraceRepository, store *MockObjectStore) {
				store.On("GenerateUploadURL", mock.Anything, mock.Anything, "text/csv").Return("https://example.com/upload", nil)
				repo.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockTraceRepository{}
			mockStore := &MockObjectStore{}
			mockProc := &MockTraceService{}
			tt.mockSetup(mockRepo, mockStore)

			handler := NewTraceHandler(mockRepo, mockStore, mockProc, testConfig())
			resp, err := handler.CreateTrace(context.Background(), tt.input)

			if tt.wantStatus != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, resp.Body.ID)
				assert.Equal(t, "https://example.com/upload", resp.Body.UploadURL)
				assert.Equal(t, 900, resp.Body.ExpiresIn) // 15 minutes in seconds

				created := mockRepo.Calls[0].Arguments.Get(1).(*models.Trace)
				assert.Equal(t, resp.Body.ID, created.ID)
				assert.Equal(t, models.StatusPending, created.Status)
				assert.Equal(t, "traces/"+resp.Body.ID+".vcsv", *created.ObjectKey)
				assert.Equal(t, tt.wantLayout, created.Layout())
			}

			mockRepo.AssertExpectations(t)
			mockStore.AssertExpectations(t)
			mockProc.AssertExpectations(t)
		})
	}
}

func TestGetTraceStatus(t *testing.T) {
	id := uuid.New()
	errMsg := "Failed to parse export"

	tests := []struct {
		name        string
		id          string
		trace       *models.Trace
		repoErr     error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "processing",
			id:          id.String(),
			trace:       &models.Trace{ID: id.String(), Status: models.StatusProcessing, Progress: 30},
			wantMessage: "Parsing channel metadata...",
		},
		{
			name:        "failed carries error",
			id:          id.String(),
			trace:       &models.Trace{ID: id.String(), Status: models.StatusFailed, Progress: 30, ErrorMsg: &errMsg},
			wantMessage: "Processing failed",
		},
		{
			name:       "invalid id",
			id:         "not-a-uuid",
			wantStatus: 400,
		},
		{
			name:       "not found",
			id:         id.String(),
			repoErr:    repository.ErrNotFound,
			wantStatus: 404,
		},
		{
			name:       "database failure",
			id:         id.String(),
			repoErr:    assert.AnError,
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockTraceRepository{}
			if tt.trace != nil || tt.repoErr != nil {
				if tt.trace != nil {
					mockRepo.On("GetByID", mock.Anything, id).Return(tt.trace, nil)
				} else {
					mockRepo.On("GetByID", mock.Anything, id).Return(nil, tt.repoErr)
				}
			}

			handler := NewTraceHandler(mockRepo, &MockObjectStore{}, &MockTraceService{}, testConfig())
			resp, err := handler.GetTraceStatus(context.Background(), &models.GetTraceStatusRequest{ID: tt.id})

			if tt.wantStatus != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.trace.Status, resp.Body.Status)
			assert.Equal(t, tt.trace.Progress, resp.Body.Progress)
			assert.Equal(t, tt.wantMessage, resp.Body.Message)
			assert.Equal(t, tt.trace.ErrorMsg, resp.Body.Error)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestStartProcessing(t *testing.T) {
	id := uuid.New()

	t.Run("runs in background", func(t *testing.T) {
		mockRepo := &MockTraceRepository{}
		mockProc := &MockTraceService{}
		done := make(chan struct{})

		mockRepo.On("ClaimProcessing", mock.Anything, id).Return(nil)
		mockProc.On("ProcessTrace", mock.Anything, id).Return(nil).Run(func(mock.Arguments) { close(done) })

		handler := NewTraceHandler(mockRepo, &MockObjectStore{}, mockProc, testConfig())
		resp, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
		require.NoError(t, err)
		assert.Equal(t, "Processing started successfully", resp.Body.Message)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("processing was not started")
		}
		mockProc.AssertExpectations(t)
	})

	t.Run("already processing", func(t *testing.T) {
		mockRepo := &MockTraceRepository{}
		mockProc := &MockTraceService{}
		mockRepo.On("ClaimProcessing", mock.Anything, id).Return(repository.ErrAlreadyProcessing)

		handler := NewTraceHandler(mockRepo, &MockObjectStore{}, mockProc, testConfig())
		_, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
		assert.Equal(t, 409, statusOf(t, err))
		mockProc.AssertNotCalled(t, "ProcessTrace", mock.Anything, mock.Anything)
		mockRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("concurrent starts launch one run", func(t *testing.T) {
		mockRepo := &MockTraceRepository{}
		mockProc := &MockTraceService{}
		done := make(chan struct{})

		mockRepo.On("ClaimProcessing", mock.Anything, id).Return(nil).Once()
		mockRepo.On("ClaimProcessing", mock.Anything, id).Return(repository.ErrAlreadyProcessing)
		mockProc.On("ProcessTrace", mock.Anything, id).Return(nil).Run(func(mock.Arguments) { close(done) }).Once()

		handler := NewTraceHandler(mockRepo, &MockObjectStore{}, mockProc, testConfig())

		const callers = 8
		codes := make(chan int, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
				if err == nil {
					codes <- 200
					return
				}
				var se huma.StatusError
				if errors.As(err, &se) {
					codes <- se.GetStatus()
				}
			}()
		}
		wg.Wait()
		close(codes)

		counts := map[int]int{}
		for c := range codes {
			counts[c]++
		}
		assert.Equal(t, map[int]int{200: 1, 409: callers - 1}, counts)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("processing was not started")
		}
		mockProc.AssertNumberOfCalls(t, "ProcessTrace", 1)
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo := &MockTraceRepository{}
		mockRepo.On("ClaimProcessing", mock.Anything, id).Return(repository.ErrNotFound)

		handler := NewTraceHandler(mockRepo, &MockObjectStore{}, &MockTraceService{}, testConfig())
		_, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
		assert.Equal(t, 404, statusOf(t, err))
	})
}

func TestGetTraceRows(t *testing.T) {
	id := uuid.New()
	channels := []models.TraceChannel{
		{Channel: 0, Signal: "Vout2", Params: map[string]any{"vpp": 0.1}},
		{Channel: 1, Signal: "Vout 3", Params: map[string]any{"vpp": 0.2}},
	}
	page := &repository.RowPage{
		Columns: []string{"time", "value", "signal", "vpp", "channel"},
		Rows:    []json.RawMessage{json.RawMessage(`{"time":0,"value":1,"signal":"Vout 3","vpp":0.2,"channel":1}`)},
		Total:   3,
	}

	t.Run("page of one channel", func(t *testing.T) {
		mockRepo := &MockTraceRepository{}
		mockRepo.On("GetByID", mock.Anything, id).Return(&models.Trace{ID: id.String(), Status: models.StatusCompleted}, nil)
		mockRepo.On("GetChannels", mock.Anything, id).Return(channels, nil)
		mockRepo.On("GetRows", mock.Anything, id, repository.RowQuery{Channel: 1, Limit: 1, Offset: 0}).Return(page, nil)

		handler := NewTraceHandler(mockRepo, &MockObjectStore{}, &MockTraceService{}, testConfig())
		resp, err := handler.GetTraceRows(context.Background(), &models.GetTraceRowsRequest{ID: id.String(), Channel: 1, Limit: 1})
		require.NoError(t, err)

		assert.Equal(t, page.Columns, resp.Body.Columns)
		assert.Equal(t, channels, resp.Body.Channels)
		assert.Equal(t, 3, resp.Body.Total)
		require.Len(t, resp.Body.Rows, 1)
		mockRepo.AssertExpectations(t)
	})

	t.Run("not completed", func(t *testing.T) {
		mockRepo := &MockTraceRepository{}
		mockRepo.On("GetByID", mock.Anything, id).Return(&models.Trace{ID: id.String(), Status: models.StatusProcessing}, nil)

		handler := NewTraceHandler(mockRepo, &MockObjectStore{}, &MockTraceService{}, testConfig())
		_, err := handler.GetTraceRows(context.Background(), &models.GetTraceRowsRequest{ID: id.String(), Channel: -1, Limit: 10})
		assert.Equal(t, 409, statusOf(t, err))
		mockRepo.AssertNotCalled(t, "GetRows", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("channel out of range", func(t *testing.T) {
		mockRepo := &MockTraceRepository{}
		mockRepo.On("GetByID", mock.Anything, id).Return(&models.Trace{ID: id.String(), Status: models.StatusCompleted}, nil)
		mockRepo.On("GetChannels", mock.Anything, id).Return(channels, nil)

		handler := NewTraceHandler(mockRepo, &MockObjectStore{}, &MockTraceService{}, testConfig())
		_, err := handler.GetTraceRows(context.Background(), &models.GetTraceRowsRequest{ID: id.String(), Channel: 2, Limit: 10})
		assert.Equal(t, 400, statusOf(t, err))
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo := &MockTraceRepository{}
		mockRepo.On("GetByID", mock.Anything, id).Return(nil, repository.ErrNotFound)

		handler := NewTraceHandler(mockRepo, &MockObjectStore{}, &MockTraceService{}, testConfig())
		_, err := handler.GetTraceRows(context.Background(), &models.GetTraceRowsRequest{ID: id.String(), Channel: -1, Limit: 10})
		assert.Equal(t, 404, statusOf(t, err))
	})
}

func TestParseTrace(t *testing.T) {
	handler := NewTraceHandler(&MockTraceRepository{}, &MockObjectStore{}, &MockTraceService{}, testConfig())

	t.Run("long form table", func(t *testing.T) {
		req := &models.ParseTraceRequest{}
		req.Body.Header = `;leafValue( Vout2 "vpp" 0.1 K 7 ) (V),;leafValue( "Vout 3" "vpp" 0.2 ) (V)`
		req.Body.Data = [][]float64{{0, 1, 0, 2}, {1, 1.5, 1, 2.5}}

		resp, err := handler.ParseTrace(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, []string{"time", "value", "signal", "vpp", "K", "channel"}, resp.Body.Columns)
		require.Len(t, resp.Body.Channels, 2)
		assert.Equal(t, int64(7), resp.Body.Channels[0].Params["K"])
		require.Len(t, resp.Body.Rows, 4)
		assert.JSONEq(t, `{"time":0,"value":1,"signal":"Vout2","vpp":0.1,"K":7,"channel":0}`, string(resp.Body.Rows[0]))
		assert.JSONEq(t, `{"time":1,"value":2.5,"signal":"Vout 3","vpp":0.2,"channel":1}`, string(resp.Body.Rows[3]))
	})

	t.Run("malformed entry", func(t *testing.T) {
		req := &models.ParseTraceRequest{}
		req.Body.Header = `;leafValue( Vout vpp x ) (V)`
		req.Body.Data = [][]float64{{0, 1}}

		_, err := handler.ParseTrace(context.Background(), req)
		assert.Equal(t, 422, statusOf(t, err))
	})

	t.Run("schema mismatch", func(t *testing.T) {
		req := &models.ParseTraceRequest{}
		req.Body.Header = `;a (V),;b (V)`
		req.Body.Data = [][]float64{{0, 1, 0}}

		_, err := handler.ParseTrace(context.Background(), req)
		assert.Equal(t, 422, statusOf(t, err))
	})
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "Waiting for upload to be processed...", statusMessage(models.StatusPending, 0))
	assert.Equal(t, "Starting...", statusMessage(models.StatusProcessing, 10))
	assert.Equal(t, "Storing long-form rows...", statusMessage(models.StatusProcessing, 60))
	assert.Equal(t, "Finalizing...", statusMessage(models.StatusProcessing, 90))
	assert.Equal(t, "Trace ready", statusMessage(models.StatusCompleted, 100))
	assert.Equal(t, "Unknown status", statusMessage("archived", 0))
}
