package models

// CoherentFrequencyRequest asks for the coherent frequencies nearest below
// one or more targets
type CoherentFrequencyRequest struct {
	Body struct {
		Frequencies  []float64 `json:"frequencies,omitempty" maxItems:"10000" doc:"Target frequencies in Hz"`
		Frequency    *float64  `json:"frequency,omitempty" doc:"Single target frequency in Hz, appended to frequencies"`
		SampleRate   float64   `json:"sample_rate" exclusiveMinimum:"0" required:"true" doc:"Sample rate in Hz"`
		WindowLength int       `json:"window_length,omitempty" minimum:"0" doc:"Window length in samples (server default when omitted)"`
	}
}

// CoherentFrequencyResponseBody is the body of the coherent frequency response
type CoherentFrequencyResponseBody struct {
	Frequencies  []float64 `json:"frequencies" doc:"Coherent frequencies in Hz, in request order"`
	Cycles       []int     `json:"cycles" doc:"Integer cycle count per window for each frequency"`
	WindowLength int       `json:"window_length" doc:"Window length the frequencies were computed for"`
	SampleRate   float64   `json:"sample_rate" doc:"Sample rate in Hz"`
}

// CoherentFrequencyResponse returns coherent frequencies
type CoherentFrequencyResponse struct {
	Body CoherentFrequencyResponseBody
}
