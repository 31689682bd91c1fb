package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/tracelab/pkg/coherent"
	"github.com/RMahshie/tracelab/pkg/models"
)

// CoherentHandler serves coherent frequency selection
type CoherentHandler struct {
	defaultWindow int
}

// NewCoherentHandler creates a handler that falls back to defaultWindow samples
// when a request names no window length
func NewCoherentHandler(defaultWindow int) *CoherentHandler {
	return &CoherentHandler{defaultWindow: defaultWindow}
}

// CoherentFrequency returns the coherent frequency for each requested target
func (h *CoherentHandler) CoherentFrequency(ctx context.Context, req *models.CoherentFrequencyRequest) (*models.CoherentFrequencyResponse, error) {
	targets := req.Body.Frequencies
	if req.Body.Frequency != nil {
		targets = append(append([]float64(nil), targets...), *req.Body.Frequency)
	}
	if len(targets) == 0 {
		return nil, huma.Error400BadRequest("At least one frequency is required")
	}

	n := req.Body.WindowLength
	if n == 0 {
		n = h.defaultWindow
	}

	freqs, cycles, err := coherent.SelectSlice(targets, req.Body.SampleRate, n)
	if err != nil {
		if errors.Is(err, coherent.ErrInvalidArgument) {
			return nil, huma.Error400BadRequest(err.Error(), err)
		}
		return nil, huma.Error500InternalServerError("Failed to select frequencies", err)
	}

	log.Debug().Int("count", len(freqs)).Int("windowLength", n).Float64("sampleRate", req.Body.SampleRate).Msg("Coherent frequencies selected")

	return &models.CoherentFrequencyResponse{
		Body: models.CoherentFrequencyResponseBody{
			Frequencies:  freqs,
			Cycles:       cycles,
			WindowLength: n,
			SampleRate:   req.Body.SampleRate,
		},
	}, nil
}
