package enrichment

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"DemandSentinel/internal/calculator"
	"DemandSentinel/internal/model"
)

// ErrMalformedResponse is returned when the generator's answer cannot be
// parsed or does not match the expected shape.
var ErrMalformedResponse = errors.New("malformed external response")

const batchInsightsSchema = `{
  "type": "object",
  "required": ["batch_insights"],
  "properties": {
    "batch_insights": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["insights"],
        "properties": {
          "search_index": {"type": "integer"},
          "query": {"type": "string"},
          "insights": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["title", "impact_score", "confidence_score"],
              "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "impact_score": {"type": "number"},
                "confidence_score": {"type": "number"},
                "time_relevance": {"type": "string"},
                "predicted_impact": {
                  "type": "object",
                  "properties": {
                    "demand_change_percentage": {"type": "number"},
                    "direction": {"type": "string"},
                    "duration_days": {"type": "number"}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

var batchSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(batchInsightsSchema))
	if err != nil {
		panic(fmt.Sprintf("compile batch insights schema: %v", err))
	}
	batchSchema = s
}

var (
	fenceOpen  = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*")
	fenceClose = regexp.MustCompile("(?m)```\\s*$")
)

// CleanResponse strips markdown code fences and stray backticks.
func CleanResponse(raw string) string {
	s := strings.ReplaceAll(raw, "```json", "")
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, "`") && strings.HasSuffix(s, "`") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

type batchResponse struct {
	BatchInsights []struct {
		Query    string `json:"query"`
		Insights []struct {
			Title           string  `json:"title"`
			Description     string  `json:"description"`
			ImpactScore     float64 `json:"impact_score"`
			ConfidenceScore float64 `json:"confidence_score"`
			TimeRelevance   string  `json:"time_relevance"`
			PredictedImpact struct {
				DemandChangePercentage float64 `json:"demand_change_percentage"`
				Direction              string  `json:"direction"`
				DurationDays           float64 `json:"duration_days"`
			} `json:"predicted_impact"`
		} `json:"insights"`
	} `json:"batch_insights"`
}

// ParseInsights cleans, validates and decodes a batch_insights answer.
// Scores are clamped to [0,1].
func ParseInsights(raw string) ([]model.MarketInsight, error) {
	cleaned := CleanResponse(raw)
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedResponse)
	}
	result, err := batchSchema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(msgs, "; "))
	}

	var br batchResponse
	if err := json.Unmarshal([]byte(cleaned), &br); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var out []model.MarketInsight
	for _, batch := range br.BatchInsights {
		for _, in := range batch.Insights {
			mi := model.MarketInsight{
				Title:                  in.Title,
				Description:            in.Description,
				Query:                  batch.Query,
				ImpactScore:            calculator.Clamp(in.ImpactScore, 0, 1),
				ConfidenceScore:        calculator.Clamp(in.ConfidenceScore, 0, 1),
				TimeRelevance:          in.TimeRelevance,
				DemandChangePercentage: in.PredictedImpact.DemandChangePercentage,
				Direction:              strings.ToUpper(in.PredictedImpact.Direction),
				DurationDays:           int(in.PredictedImpact.DurationDays),
			}
			if mi.TimeRelevance == "" {
				mi.TimeRelevance = "MEDIUM_TERM"
			}
			if mi.Direction == "" {
				mi.Direction = "NEUTRAL"
			}
			if mi.DurationDays <= 0 {
				mi.DurationDays = 30
			}
			out = append(out, mi)
		}
	}
	return out, nil
}
