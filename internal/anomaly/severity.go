package anomaly

import "DemandSentinel/internal/model"

// ratioTiers maps deviation/threshold to a severity. First match wins.
var ratioTiers = []struct {
	MinRatio float64
	Severity model.Severity
}{
	{3.0, model.SeverityCritical},
	{2.0, model.SeverityHigh},
	{1.5, model.SeverityMedium},
}

// errorTiers maps a relative forecast error to a severity.
var errorTiers = []struct {
	MinError float64
	Severity model.Severity
}{
	{0.8, model.SeverityCritical},
	{0.5, model.SeverityHigh},
	{0.3, model.SeverityMedium},
}

// SeverityForRatio grades a statistical deviation relative to the threshold.
func SeverityForRatio(ratio float64) model.Severity {
	for _, t := range ratioTiers {
		if ratio > t.MinRatio {
			return t.Severity
		}
	}
	return model.SeverityLow
}

// SeverityForError grades a relative forecast error.
func SeverityForError(err float64) model.Severity {
	for _, t := range errorTiers {
		if err > t.MinError {
			return t.Severity
		}
	}
	return model.SeverityLow
}
