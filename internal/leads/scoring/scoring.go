// Package scoring maps engagement activity and source channel to a lead
// score, category and default priority. Everything here is pure.
package scoring

import (
	"math"

	"solar_portal_backend/internal/leads/domain"
)

const (
	// scoreVersion tracks the scoring model for debugging and analysis.
	// Bump this when changing weights or multipliers.
	scoreVersion = "2026-v1"

	maxScore = 100
	minScore = 0

	warmThreshold = 50
	hotThreshold  = 80

	urgentThreshold = 90
)

// weights are points per unit of activity.
var weights = struct {
	pageView        float64
	formSubmit      float64
	pricingPageView float64
	demoRequest     float64
	emailOpen       float64
}{
	pageView:        2,
	formSubmit:      60,
	pricingPageView: 10,
	demoRequest:     45,
	emailOpen:       3,
}

// sourceMultipliers favor channels that historically convert better.
var sourceMultipliers = map[domain.Source]float64{
	domain.SourceReferral:   1.3,
	domain.SourcePhone:      1.2,
	domain.SourceSiteForm:   1.1,
	domain.SourceChatWidget: 1.0,
	domain.SourceOther:      0.8,
}

// Contribution is one activity's share of the raw score.
type Contribution struct {
	Activity string  `json:"activity"`
	Count    int     `json:"count"`
	Weight   float64 `json:"weight"`
	Points   float64 `json:"points"`
}

// Result is a full evaluation, kept for display and audit metadata.
type Result struct {
	Score      int             `json:"score"`
	Category   domain.Category `json:"category"`
	Priority   domain.Priority `json:"priority"`
	Raw        float64         `json:"raw"`
	Multiplier float64         `json:"multiplier"`
	Breakdown  []Contribution  `json:"breakdown"`
	Version    string          `json:"version"`
}

// Evaluate scores activity for source.
func Evaluate(activity domain.ActivityCounts, source domain.Source) Result {
	breakdown := Breakdown(activity)
	raw := 0.0
	for _, c := range breakdown {
		raw += c.Points
	}
	multiplier := Multiplier(source)
	score := clamp(math.Round(raw * multiplier))
	category := Categorize(score)

	return Result{
		Score:      score,
		Category:   category,
		Priority:   DefaultPriority(score, category),
		Raw:        raw,
		Multiplier: multiplier,
		Breakdown:  breakdown,
		Version:    scoreVersion,
	}
}

// Score returns only the clamped 0-100 score.
func Score(activity domain.ActivityCounts, source domain.Source) int {
	return Evaluate(activity, source).Score
}

// Breakdown lists each activity's contribution before the multiplier.
// Negative counts contribute nothing.
func Breakdown(activity domain.ActivityCounts) []Contribution {
	return []Contribution{
		contribution("pageViews", activity.PageViews, weights.pageView),
		contribution("formSubmits", activity.FormSubmits, weights.formSubmit),
		contribution("pricingPageViews", activity.PricingPageViews, weights.pricingPageView),
		contribution("demoRequests", activity.DemoRequests, weights.demoRequest),
		contribution("emailOpens", activity.EmailOpens, weights.emailOpen),
	}
}

// Multiplier returns the channel multiplier; unknown channels score like "other".
func Multiplier(source domain.Source) float64 {
	if m, ok := sourceMultipliers[source]; ok {
		return m
	}
	return sourceMultipliers[domain.SourceOther]
}

// Categorize partitions a score into cold, warm and hot.
func Categorize(score int) domain.Category {
	switch {
	case score >= hotThreshold:
		return domain.CategoryHot
	case score >= warmThreshold:
		return domain.CategoryWarm
	default:
		return domain.CategoryCold
	}
}

// DefaultPriority is the priority a lead gets when no human override is set.
func DefaultPriority(score int, category domain.Category) domain.Priority {
	if score >= urgentThreshold {
		return domain.PriorityUrgent
	}
	switch category {
	case domain.CategoryHot:
		return domain.PriorityHigh
	case domain.CategoryWarm:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func contribution(name string, count int, weight float64) Contribution {
	if count < 0 {
		count = 0
	}
	return Contribution{Activity: name, Count: count, Weight: weight, Points: float64(count) * weight}
}

// clamp bounds in float64 so huge raw scores never reach the int conversion.
func clamp(score float64) int {
	if score >= maxScore {
		return maxScore
	}
	if score <= minScore || math.IsNaN(score) {
		return minScore
	}
	return int(score)
}
