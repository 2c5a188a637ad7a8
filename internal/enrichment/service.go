package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
)

const (
	// DefaultCacheTTL is how long a batch answer is reused.
	DefaultCacheTTL = 15 * time.Minute
	maxInsights     = 20
)

// Profile describes the business the queries are built for.
type Profile struct {
	Industry          string
	BusinessType      string
	ProductCategories []string
	Competitors       []string
	MaxQueries        int
}

// Service turns demand patterns into market context.
type Service struct {
	gen     Generator
	cache   Cache
	profile Profile
	ttl     time.Duration
	log     logger.Logger
}

// NewService creates a service. A nil cache disables caching.
func NewService(gen Generator, cache Cache, profile Profile, ttl time.Duration, log logger.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if profile.MaxQueries <= 0 {
		profile.MaxQueries = 8
	}
	return &Service{gen: gen, cache: cache, profile: profile, ttl: ttl, log: log}
}

// Queries lists the market questions for this run: general industry
// trends, one per product category, then one per observed pattern type.
func (s *Service) Queries(patterns []model.DemandPattern) []string {
	industry := s.profile.Industry
	queries := []string{
		industry + " market trends",
		industry + " consumer behavior changes",
		industry + " seasonal patterns",
		industry + " economic outlook",
	}
	for _, c := range s.profile.ProductCategories {
		queries = append(queries, fmt.Sprintf("%s demand forecast %s", c, industry))
	}
	seen := make(map[model.PatternType]bool)
	var types []string
	for _, p := range patterns {
		if !seen[p.PatternType] {
			seen[p.PatternType] = true
			types = append(types, strings.ToLower(string(p.PatternType)))
		}
	}
	sort.Strings(types)
	for _, t := range types {
		queries = append(queries, fmt.Sprintf("%s %s demand drivers", industry, t))
	}
	if len(queries) > s.profile.MaxQueries {
		queries = queries[:s.profile.MaxQueries]
	}
	return queries
}

func cacheKey(industry string, queries []string) string {
	sum := sha256.Sum256([]byte(industry + "_" + strings.Join(queries, "|")))
	return hex.EncodeToString(sum[:])
}

// Analyze fetches (or reuses) insights for the patterns and folds them
// into a MarketContext.
func (s *Service) Analyze(ctx context.Context, patterns []model.DemandPattern) (*model.MarketContext, error) {
	queries := s.Queries(patterns)
	key := cacheKey(s.profile.Industry, queries)

	if insights, ok := s.cached(ctx, key); ok {
		mc := Fold(insights)
		mc.Cached = true
		return mc, nil
	}

	raw, err := s.gen.Complete(ctx, s.systemPrompt(), userPrompt(queries, patterns))
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}
	insights, err := ParseInsights(raw)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(insights); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				s.log.Warnf(ctx, "cache insights: %v", err)
			}
		}
	}
	return Fold(insights), nil
}

func (s *Service) cached(ctx context.Context, key string) ([]model.MarketInsight, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warnf(ctx, "read insight cache: %v", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var insights []model.MarketInsight
	if err := json.Unmarshal(data, &insights); err != nil {
		s.log.Warnf(ctx, "decode cached insights: %v", err)
		return nil, false
	}
	return insights, true
}

func (s *Service) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a market intelligence analyst helping an inventory team.\n\n")
	fmt.Fprintf(&b, "Industry: %s\n", s.profile.Industry)
	if s.profile.BusinessType != "" {
		fmt.Fprintf(&b, "Business type: %s\n", s.profile.BusinessType)
	}
	if len(s.profile.ProductCategories) > 0 {
		fmt.Fprintf(&b, "Product categories: %s\n", strings.Join(s.profile.ProductCategories, ", "))
	}
	if len(s.profile.Competitors) > 0 {
		fmt.Fprintf(&b, "Competitors: %s\n", strings.Join(s.profile.Competitors, ", "))
	}
	b.WriteString("\nAnswer ONLY with a JSON object, no markdown. Expected shape:\n")
	b.WriteString(`{"batch_insights":[{"search_index":0,"query":"...","insights":[{"title":"...","description":"...",` +
		`"impact_score":0.8,"confidence_score":0.9,"time_relevance":"SHORT_TERM",` +
		`"predicted_impact":{"demand_change_percentage":15,"direction":"INCREASE","duration_days":90}}]}]}`)
	return b.String()
}

func userPrompt(queries []string, patterns []model.DemandPattern) string {
	counts := make(map[model.PatternType]int)
	for _, p := range patterns {
		counts[p.PatternType]++
	}
	var b strings.Builder
	for i, q := range queries {
		fmt.Fprintf(&b, "--- QUERY %d: %s ---\n", i+1, q)
	}
	b.WriteString("\nObserved demand patterns:")
	for _, t := range []model.PatternType{model.PatternSeasonal, model.PatternTrending, model.PatternStable, model.PatternErratic} {
		fmt.Fprintf(&b, " %s=%d", t, counts[t])
	}
	b.WriteString("\n")
	return b.String()
}

// Fold ranks insights and derives the market-level figures.
func Fold(insights []model.MarketInsight) *model.MarketContext {
	ranked := make([]model.MarketInsight, len(insights))
	copy(ranked, insights)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ImpactScore*ranked[i].ConfidenceScore > ranked[j].ImpactScore*ranked[j].ConfidenceScore
	})
	if len(ranked) > maxInsights {
		ranked = ranked[:maxInsights]
	}

	mc := &model.MarketContext{
		Insights:           ranked,
		GlobalMarketFactor: 1,
		Confidence:         0.6,
	}
	if len(ranked) == 0 {
		mc.Summary = "no market insights available"
		return mc
	}

	var weighted, conf float64
	var highImpact, immediate int
	for _, in := range ranked {
		weighted += in.ImpactScore * in.ConfidenceScore
		conf += in.ConfidenceScore
		if in.ImpactScore > 0.6 {
			highImpact++
		}
		if in.TimeRelevance == "IMMEDIATE" {
			immediate++
		}
		if in.ImpactScore > 0.7 {
			switch in.Direction {
			case "INCREASE":
				mc.ContextualRecommendations = append(mc.ContextualRecommendations,
					fmt.Sprintf("prepare for a %.0f%% demand increase: %s", math.Abs(in.DemandChangePercentage), in.Title))
			case "DECREASE":
				mc.ContextualRecommendations = append(mc.ContextualRecommendations,
					fmt.Sprintf("anticipate a %.0f%% demand decrease: %s", math.Abs(in.DemandChangePercentage), in.Title))
			}
		}
	}
	n := float64(len(ranked))
	if len(ranked) > 3 {
		mc.ContextualRecommendations = append(mc.ContextualRecommendations,
			"several market trends detected: strategic review recommended")
	}
	mc.GlobalMarketFactor = 1 + (weighted/n-0.5)*0.4
	mc.Confidence = math.Min(0.95, conf/n*0.7+float64(highImpact)/n*0.3)
	mc.Summary = fmt.Sprintf("%d market insights, %d high impact, %d needing immediate action", len(ranked), highImpact, immediate)
	return mc
}
