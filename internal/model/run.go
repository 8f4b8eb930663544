package model

import "time"

// RunStatus represents the current state of a scoring run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunConfig records the inputs and scoring parameters a run was started with.
type RunConfig struct {
	GoldPath       string   `json:"gold_path"`
	SystemPath     string   `json:"system_path"`
	SystemName     string   `json:"system_name,omitempty"`
	Beta           float64  `json:"beta"`
	Lambda         float64  `json:"lambda"`
	Strict         bool     `json:"strict"`
	Normalizer     string   `json:"normalizer"`
	FoldCase       bool     `json:"fold_case"`
	ExcludedRealis []string `json:"excluded_realis"`
}

// Run represents a single corpus scoring run.
type Run struct {
	ID         string         `json:"id"`
	Config     RunConfig      `json:"config"`
	ConfigHash string         `json:"config_hash"`
	Status     RunStatus      `json:"status"`
	Summary    *CorpusSummary `json:"summary,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// DocumentScore is the flat, persistable view of one document's result.
type DocumentScore struct {
	DocID              DocumentID `json:"doc_id"`
	TruePositives      int        `json:"true_positives"`
	FalsePositives     int        `json:"false_positives"`
	FalseNegatives     int        `json:"false_negatives"`
	Unassessed         int        `json:"unassessed"`
	UnscaledArgument   float64    `json:"unscaled_argument"`
	ScaledArgument     float64    `json:"scaled_argument"`
	ArgumentNormalizer int        `json:"argument_normalizer"`
	LinkingPrecision   float64    `json:"linking_precision"`
	LinkingRecall      float64    `json:"linking_recall"`
	UnscaledLinking    float64    `json:"unscaled_linking"`
	ScaledLinking      float64    `json:"scaled_linking"`
	LinkingNormalizer  int        `json:"linking_normalizer"`
	Combined           float64    `json:"combined"`
}

// EventTypeCounts holds argument counts for one event type.
type EventTypeCounts struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`
}

// CorpusSummary is the corpus-level view of a run.
type CorpusSummary struct {
	Documents      int     `json:"documents"`
	MacroDocuments int     `json:"macro_documents"`
	Failed         int     `json:"failed"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	Unassessed     int     `json:"unassessed"`
	MicroArgument  float64 `json:"micro_argument"`
	MicroLinking   float64 `json:"micro_linking"`
	MicroCombined  float64 `json:"micro_combined"`
	MacroArgument  float64 `json:"macro_argument"`
	MacroLinking   float64 `json:"macro_linking"`
	MacroCombined  float64 `json:"macro_combined"`

	ByEventType map[string]EventTypeCounts `json:"by_event_type,omitempty"`
}
