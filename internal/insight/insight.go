package insight

// Kind classifies how urgent an insight is.
type Kind string

const (
	KindInfo     Kind = "info"
	KindWarning  Kind = "warning"
	KindCritical Kind = "critical"
)

// Insight is a forward-looking statement about likely future degradation.
// Batches replace one another; insights are not persisted.
type Insight struct {
	Type            Kind    `json:"type"`
	Message         string  `json:"message"`
	Probability     float64 `json:"probability"`
	Timeframe       string  `json:"timeframe"`
	SuggestedAction string  `json:"suggested_action,omitempty"`
}
