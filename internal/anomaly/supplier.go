package anomaly

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"DemandSentinel/internal/model"
)

const supplierAlertSchema = `{
  "type": "object",
  "required": ["entity_id", "supplier_id", "message", "severity", "observed_value", "expected_value"],
  "properties": {
    "entity_id":      {"type": "string", "minLength": 1},
    "supplier_id":    {"type": "string", "minLength": 1},
    "message":        {"type": "string"},
    "severity":       {"type": "string", "enum": ["LOW", "MEDIUM", "HIGH", "CRITICAL"]},
    "observed_value": {"type": "number"},
    "expected_value": {"type": "number", "minimum": 0}
  }
}`

// ErrInvalidSupplierAlert marks a supplier alert that failed validation.
var ErrInvalidSupplierAlert = errors.New("invalid supplier alert")

var supplierSchema = mustSchema(supplierAlertSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile supplier alert schema: %v", err))
	}
	return s
}

// ValidateSupplierAlert checks a decoded supplier alert against its schema.
func ValidateSupplierAlert(a model.SupplierAlert) error {
	return ValidateSupplierAlertJSON(gojsonschema.NewGoLoader(a))
}

// ValidateSupplierAlertJSON checks a raw JSON document against the schema.
func ValidateSupplierAlertJSON(doc gojsonschema.JSONLoader) error {
	result, err := supplierSchema.Validate(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSupplierAlert, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidSupplierAlert, strings.Join(msgs, "; "))
}

func supplierAnomaly(a model.SupplierAlert, in Input) model.AnomalyResult {
	deviation := abs(a.ObservedValue-a.ExpectedValue) / max(a.ExpectedValue, 1)
	return model.AnomalyResult{
		EntityID:        a.EntityID,
		AnomalyType:     model.AnomalySupplierIssue,
		Severity:        a.Severity,
		DetectedAt:      in.Now,
		CurrentValue:    a.ObservedValue,
		ExpectedValue:   a.ExpectedValue,
		DeviationScore:  deviation,
		ConfidenceScore: 0.9,
		ImpactAssessment: model.ImpactAssessment{
			FinancialImpact:   750,
			OperationalImpact: "supply disruption",
			CustomerImpact:    customerImpact(a.Severity),
		},
		RootCauses: []string{fmt.Sprintf("supplier %s reported: %s", a.SupplierID, a.Message)},
		RecommendedActions: []string{
			fmt.Sprintf("contact supplier %s", a.SupplierID),
			"review alternative suppliers",
		},
	}
}
