package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/tracelab/internal/api/handlers"
	"github.com/RMahshie/tracelab/internal/config"
	"github.com/RMahshie/tracelab/internal/processing"
	"github.com/RMahshie/tracelab/internal/repository"
	"github.com/RMahshie/tracelab/internal/storage"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, cfg config.TraceConfig, store storage.ObjectStore, traceRepo repository.TraceRepository, traceSvc processing.TraceService) {
	traceHandler := handlers.NewTraceHandler(traceRepo, store, traceSvc, cfg)
	coherentHandler := handlers.NewCoherentHandler(cfg.DefaultWindowLength)

	huma.Register(api, huma.Operation{
		OperationID: "coherentFrequency",
		Method:      http.MethodPost,
		Path:        "/api/coherent-frequency",
		Summary:     "Select coherent frequencies",
		Description: "Returns the coherent frequency nearest below each target for the given sample rate and window length",
		Tags:        []string{"Coherent"},
	}, coherentHandler.CoherentFrequency)

	huma.Register(api, huma.Operation{
		OperationID: "createTrace",
		Method:      http.MethodPost,
		Path:        "/api/traces",
		Summary:     "Create a new trace",
		Description: "Creates a trace record and returns an upload URL for the vcsv export",
		Tags:        []string{"Traces"},
	}, traceHandler.CreateTrace)

	huma.Register(api, huma.Operation{
		OperationID: "parseTrace",
		Method:      http.MethodPost,
		Path:        "/api/traces/parse",
		Summary:     "Parse an inline trace",
		Description: "Reshapes a metadata line and numeric block into the long-form table",
		Tags:        []string{"Traces"},
	}, traceHandler.ParseTrace)

	huma.Register(api, huma.Operation{
		OperationID: "startProcessing",
		Method:      http.MethodPost,
		Path:        "/api/traces/{id}/process",
		Summary:     "Start processing trace",
		Description: "Starts processing an uploaded vcsv export",
		Tags:        []string{"Traces"},
	}, traceHandler.StartProcessing)

	huma.Register(api, huma.Operation{
		OperationID: "getTraceStatus",
		Method:      http.MethodGet,
		Path:        "/api/traces/{id}/status",
		Summary:     "Get trace status",
		Description: "Returns the current status and progress of a trace",
		Tags:        []string{"Traces"},
	}, traceHandler.GetTraceStatus)

	huma.Register(api, huma.Operation{
		OperationID: "getTraceRows",
		Method:      http.MethodGet,
		Path:        "/api/traces/{id}/rows",
		Summary:     "Get trace rows",
		Description: "Returns a page of long-form rows with channel metadata",
		Tags:        []string{"Traces"},
	}, traceHandler.GetTraceRows)
}
