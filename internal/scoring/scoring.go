// Package scoring turns scored items into the report's headline numbers.
// Everything here is a pure function of its inputs and the supplied now.
package scoring

import (
	"math"
	"time"

	"github.com/painradar/painradar/internal/models"
)

const (
	recencyHours = 72.0
	signalCap    = 8.0
	week         = 7 * 24 * time.Hour
	month        = 30 * 24 * time.Hour
)

// Engagement is ln(1+score) + 0.8·ln(1+comments); negative counts read as 0
func Engagement(score, comments int) float64 {
	return math.Log1p(float64(max(score, 0))) + 0.8*math.Log1p(float64(max(comments, 0)))
}

// Recency decays with a 72 hour time constant. Future timestamps count as now.
func Recency(createdAt, now time.Time) float64 {
	hours := now.Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours / recencyHours)
}

// Weight is engagement × (0.6 + 0.4·recency). Undated items weigh nothing.
func Weight(item models.RawItem, now time.Time) float64 {
	if item.CreatedAt.IsZero() {
		return 0
	}
	w := Engagement(item.EngagementScore, item.CommentCount) * (0.6 + 0.4*Recency(item.CreatedAt, now))
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return 0
	}
	return w
}

// ApplyWeights sets EngagementWeight on every item
func ApplyWeights(items []models.ScoredItem, now time.Time) {
	for i := range items {
		items[i].EngagementWeight = Weight(items[i].RawItem, now)
	}
}

// Sigmoid maps a capped signal to (0,1) with 2 at the midpoint
func Sigmoid(signal float64) float64 {
	capped := math.Min(math.Max(signal, 0), signalCap)
	return 1 / (1 + math.Exp(-(capped - 2)))
}

// PainIndex is the weight-averaged pain sigmoid scaled to 0-100
func PainIndex(items []models.ScoredItem) int {
	avg, ok := weightedAverage(items, func(item models.ScoredItem) float64 {
		return Sigmoid(item.PainScore)
	})
	if !ok {
		return 0
	}
	return clampPercent(math.Round(avg * 100))
}

// OpportunityScore blends weighted pain×buyer intensity (70%) with the share
// of items showing any buyer intent (30%)
func OpportunityScore(items []models.ScoredItem) int {
	if len(items) == 0 {
		return 0
	}
	avg, _ := weightedAverage(items, func(item models.ScoredItem) float64 {
		return Sigmoid(item.PainScore) * Sigmoid(item.BuyerScore)
	})

	withIntent := 0
	for _, item := range items {
		if item.BuyerScore > 0 {
			withIntent++
		}
	}
	density := float64(withIntent) / float64(len(items))

	return clampPercent(math.Round(math.Min(100, avg*70+density*30)))
}

// weightedAverage returns false when the weights sum to zero
func weightedAverage(items []models.ScoredItem, value func(models.ScoredItem) float64) (float64, bool) {
	var sum, total float64
	for _, item := range items {
		w := item.EngagementWeight
		if w <= 0 || math.IsNaN(w) {
			continue
		}
		v := value(item)
		if math.IsNaN(v) {
			continue
		}
		sum += w * v
		total += w
	}
	if total == 0 {
		return 0, false
	}
	return sum / total, true
}

func clampPercent(v float64) int {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v)
	}
}

// Spike compares the last seven days against the rolling weekly average of
// the last thirty. Undated items are ignored.
func Spike(items []models.RawItem, now time.Time) models.PainSpike {
	var weekly, monthly int
	for _, item := range items {
		if item.CreatedAt.IsZero() {
			continue
		}
		age := now.Sub(item.CreatedAt)
		if age <= month {
			monthly++
		}
		if age <= week {
			weekly++
		}
	}
	return models.PainSpike{
		WeeklyVolume:  weekly,
		MonthlyVolume: monthly,
		DeltaPercent:  SpikeDelta(weekly, monthly),
	}
}

// SpikeDelta is round(((week+1)/(month/4+1) - 1) × 100)
func SpikeDelta(weekly, monthly int) int {
	ratio := float64(weekly+1) / (float64(monthly)/4 + 1)
	return int(math.Round((ratio - 1) * 100))
}

// Stats assembles the headline numbers; volume counts every relevant item
func Stats(items []models.ScoredItem) models.Stats {
	return models.Stats{
		PainIndex:        PainIndex(items),
		OpportunityScore: OpportunityScore(items),
		Volume:           len(items),
	}
}
