package types

// Info describes the running router, returned by GET /info.
type Info struct {
	// Model identifier served by the backend.
	// example: bigscience/bloom-560m
	ModelID string `json:"model_id" example:"bigscience/bloom-560m"`
	// Revision of the tokenizer/model, when one was requested.
	// example: main
	Revision string `json:"revision,omitempty" example:"main"`
	// Backend variant.
	// example: sharded
	Backend string `json:"backend" example:"sharded"`
	// How the tokenizer was resolved: fast, external or none.
	// example: fast
	Tokenizer string `json:"tokenizer" example:"fast"`
	// example: 128
	MaxConcurrentRequests int `json:"max_concurrent_requests" example:"128"`
	// example: 2
	MaxBestOf int `json:"max_best_of" example:"2"`
	// example: 4
	MaxStopSequences int `json:"max_stop_sequences" example:"4"`
	// example: 5
	MaxTopNTokens int `json:"max_top_n_tokens" example:"5"`
	// Effective maximum input tokens after negotiation.
	// example: 1024
	MaxInputTokens int `json:"max_input_tokens" example:"1024"`
	// Effective maximum total tokens after negotiation.
	// example: 2048
	MaxTotalTokens int `json:"max_total_tokens" example:"2048"`
	// example: 4096
	MaxBatchPrefillTokens int `json:"max_batch_prefill_tokens" example:"4096"`
	// Unset when the backend reported no batch ceiling.
	// example: 16000
	MaxBatchTotalTokens int `json:"max_batch_total_tokens,omitempty" example:"16000"`
	// example: 20
	MaxWaitingTokens int `json:"max_waiting_tokens" example:"20"`
	// example: 1.2
	WaitingServedRatio float64 `json:"waiting_served_ratio" example:"1.2"`
	// example: 4
	MaxClientBatchSize int `json:"max_client_batch_size" example:"4"`
	// example: 2
	ValidationWorkers int `json:"validation_workers" example:"2"`
	// False when started with --disable-grammar-support.
	// example: true
	GrammarSupport bool `json:"grammar_support" example:"true"`
	// Router version.
	// example: 0.1.0
	Version string `json:"version" example:"0.1.0"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// example: ok
	Status string `json:"status" example:"ok"`
	// Backend variant that was checked.
	// example: sharded
	Backend string `json:"backend" example:"sharded"`
}

// TokenizeRequest is the payload of POST /tokenize.
// Exactly one of Inputs or Batch must be set.
type TokenizeRequest struct {
	// Text to tokenize.
	// example: What is Deep Learning?
	Inputs string `json:"inputs,omitempty" example:"What is Deep Learning?"`
	// Several texts at once, bounded by max_client_batch_size.
	Batch []string `json:"batch,omitempty"`
	// Whether to add the tokenizer's special tokens.
	// example: true
	AddSpecialTokens *bool `json:"add_special_tokens,omitempty" example:"true"`
}

// TokenizeResponse carries one id list per input.
type TokenizeResponse struct {
	// Token ids, one slice per input in request order.
	IDs [][]uint32 `json:"ids"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
