package compatibility

import (
	"fmt"
	"math"
	"time"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/models"
)

const (
	// maxDistance is the centroid distance that maps to a zero score.
	maxDistance = 10.0
	// outlierTolerance absorbs float noise when every member scores the same.
	outlierTolerance = 1e-9
)

// Engine computes group scores from member features. It does no I/O.
type Engine struct {
	layout EmbeddingLayout
	now    func() time.Time
}

// NewEngine validates layout before accepting it.
func NewEngine(layout EmbeddingLayout) (*Engine, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Engine{layout: layout, now: time.Now}, nil
}

func (e *Engine) Layout() EmbeddingLayout { return e.layout }

// Compute scores the cohort. features must hold an entry for every member.
func (e *Engine) Compute(cohort models.Cohort, features map[string]*MemberFeatures) (*models.GroupCompatibilityScore, error) {
	if len(cohort.MemberIDs) < 2 {
		return nil, apperrors.NewInvalidRequestError("group must have at least 2 members")
	}
	seen := make(map[string]struct{}, len(cohort.MemberIDs))
	for _, id := range cohort.MemberIDs {
		if _, dup := seen[id]; dup {
			return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("member %s listed twice", id))
		}
		seen[id] = struct{}{}
		if !features[id].Resolvable() {
			return nil, apperrors.NewFeaturesUnavailableError(id)
		}
	}

	intent := NormalizeIntent(cohort.GroupIntent)
	n := len(cohort.MemberIDs)
	deviations := make([]models.MemberDeviation, n)
	for i, id := range cohort.MemberIDs {
		deviations[i] = models.MemberDeviation{
			UserID:            id,
			Distances:         make(map[models.Category]float64, len(models.Categories)),
			Scores:            make(map[models.Category]float64, len(models.Categories)),
			OutlierCategories: []models.Category{},
		}
	}

	result := &models.GroupCompatibilityScore{
		ChatID:          cohort.ChatID,
		GroupIntent:     intent,
		CategoryWeights: WeightsFor(intent),
		CalculatedAt:    e.now().UTC(),
	}

	for _, c := range models.Categories {
		vectors := make([][]float64, n)
		for i, id := range cohort.MemberIDs {
			vectors[i] = features[id].Vector(c, e.layout)
		}
		centre := centroid(vectors)

		scores := make([]float64, n)
		for i, v := range vectors {
			d := distance(v, centre)
			scores[i] = clamp01(1 - d/maxDistance)
			deviations[i].Distances[c] = d
			deviations[i].Scores[c] = scores[i]
		}

		mean, std := meanStd(scores)
		for i, s := range scores {
			if math.Abs(s-mean) > std+outlierTolerance {
				deviations[i].OutlierCategories = append(deviations[i].OutlierCategories, c)
			}
		}
		result.SetCategoryScore(c, clamp01(mean))
	}

	overall := 0.0
	for _, c := range models.Categories {
		overall += result.CategoryWeights[c] * result.CategoryScore(c)
	}
	result.OverallScore = clamp01(overall)

	for i := range deviations {
		deviations[i].IsOutlier = len(deviations[i].OutlierCategories) > 0
	}
	result.MemberDeviations = deviations
	result.Explanation = Explain(result)
	return result, nil
}

func centroid(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for d := range out {
			if d < len(v) {
				out[d] += v[d]
			}
		}
	}
	for d := range out {
		out[d] /= float64(len(vectors))
	}
	return out
}

// distance is Euclidean. Mismatched dimensions count as distance 1.
func distance(v, centre []float64) float64 {
	if len(v) != len(centre) {
		return 1
	}
	sum := 0.0
	for i := range v {
		diff := v[i] - centre[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// meanStd returns the mean and population standard deviation.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	sq := 0.0
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
