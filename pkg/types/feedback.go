package types

// Severity ranks a feedback item.
type Severity string

// Severities, least severe first.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// FeedbackItem is one human-readable recommendation.
type FeedbackItem struct {
	Rule          string   `json:"rule"`
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
	RelatedMetric string   `json:"related_metric"`
}
