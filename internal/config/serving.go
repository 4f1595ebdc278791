package config

// ServingConfig holds every operator-supplied serving parameter.
// Optional limits stay unset until the operator or the backend provides them.
type ServingConfig struct {
	MaxConcurrentRequests int         `json:"max_concurrent_requests"`
	MaxBestOf             int         `json:"max_best_of"`
	MaxStopSequences      int         `json:"max_stop_sequences"`
	MaxTopNTokens         int         `json:"max_top_n_tokens"`
	MaxInputTokens        OptionalInt `json:"max_input_tokens"`
	MaxTotalTokens        OptionalInt `json:"max_total_tokens"`
	WaitingServedRatio    float64     `json:"waiting_served_ratio"`
	MaxBatchPrefillTokens int         `json:"max_batch_prefill_tokens"`
	MaxBatchTotalTokens   OptionalInt `json:"max_batch_total_tokens"`
	MaxWaitingTokens      int         `json:"max_waiting_tokens"`
	MaxBatchSize          OptionalInt `json:"max_batch_size"`

	Hostname           string `json:"hostname"`
	Port               int    `json:"port"`
	PrometheusPort     int    `json:"prometheus_port"`
	MasterShardUDSPath string `json:"master_shard_uds_path"`

	TokenizerName       string `json:"tokenizer_name"`
	TokenizerConfigPath string `json:"tokenizer_config_path,omitempty"`
	Revision            string `json:"revision,omitempty"`
	ModelID             string `json:"model_id,omitempty"`
	TokenizerOutputDir  string `json:"tokenizer_output_dir"`
	TokenizerConverter  string `json:"tokenizer_converter"`

	ValidationWorkers     int        `json:"validation_workers"`
	JSONOutput            bool       `json:"json_output"`
	OTLPEndpoint          string     `json:"otlp_endpoint,omitempty"`
	OTLPServiceName       string     `json:"otlp_service_name"`
	CORSAllowOrigin       []string   `json:"cors_allow_origin,omitempty"`
	MaxClientBatchSize    int        `json:"max_client_batch_size"`
	APIKey                string     `json:"-"`
	Backend               string     `json:"backend"`
	ExecutorWorker        string     `json:"executor_worker,omitempty"`
	UsageStats            UsageStats `json:"usage_stats"`
	PayloadLimit          int        `json:"payload_limit"`
	DisableGrammarSupport bool       `json:"disable_grammar_support"`
}

// Default returns the serving defaults.
func Default() ServingConfig {
	return ServingConfig{
		MaxConcurrentRequests: 128,
		MaxBestOf:             2,
		MaxStopSequences:      4,
		MaxTopNTokens:         5,
		WaitingServedRatio:    1.2,
		MaxBatchPrefillTokens: 4096,
		MaxWaitingTokens:      20,
		Hostname:              "0.0.0.0",
		Port:                  3000,
		PrometheusPort:        9000,
		MasterShardUDSPath:    "/tmp/text-generation-server-0",
		TokenizerOutputDir:    "out",
		TokenizerConverter:    "python3",
		ValidationWorkers:     2,
		OTLPServiceName:       "text-generation-inference.router",
		MaxClientBatchSize:    4,
		Backend:               "sharded",
		UsageStats:            UsageStatsOn,
		PayloadLimit:          2_000_000,
	}
}

// ModelIdentifier returns the model id, falling back to the tokenizer name.
func (c ServingConfig) ModelIdentifier() string {
	if c.ModelID != "" {
		return c.ModelID
	}
	return c.TokenizerName
}
