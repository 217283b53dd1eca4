package compatibility

import (
	"context"
	"errors"

	"roommate-match-workers/internal/models"
)

// ErrFeaturesNotFound is returned by providers that know nothing about a member.
var ErrFeaturesNotFound = errors.New("member features not found")

// FeatureProvider loads the features of one member.
type FeatureProvider interface {
	Features(ctx context.Context, userID string) (*MemberFeatures, error)
}

type PersonalityScores struct {
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Neuroticism       float64 `json:"neuroticism"`
	Openness          float64 `json:"openness"`
}

type ScheduleData struct {
	SleepStart     float64 `json:"sleep_start"`
	SleepEnd       float64 `json:"sleep_end"`
	StudyIntensity float64 `json:"study_intensity"`
}

type LifestyleData struct {
	CleanlinessRoom    float64 `json:"cleanliness_room"`
	CleanlinessKitchen float64 `json:"cleanliness_kitchen"`
	NoiseTolerance     float64 `json:"noise_tolerance"`
}

type SocialData struct {
	GuestsFrequency  float64 `json:"guests_frequency"`
	PartiesFrequency float64 `json:"parties_frequency"`
	SocialLevel      float64 `json:"social_level"`
}

// MemberFeatures holds whatever is known about a member. Structured fields win
// over the embedding, category by category.
type MemberFeatures struct {
	UserID      string             `json:"userId"`
	Personality *PersonalityScores `json:"personality,omitempty"`
	Schedule    *ScheduleData      `json:"schedule,omitempty"`
	Lifestyle   *LifestyleData     `json:"lifestyle,omitempty"`
	Social      *SocialData        `json:"social,omitempty"`
	StudyYear   *float64           `json:"studyYear,omitempty"`
	Embedding   []float64          `json:"embedding,omitempty"`
}

// Resolvable reports whether every category can be derived.
func (f *MemberFeatures) Resolvable() bool {
	if f == nil {
		return false
	}
	if len(f.Embedding) > 0 {
		return true
	}
	return f.Personality != nil && f.Schedule != nil && f.Lifestyle != nil && f.Social != nil
}

// Vector returns the member's sub-vector for c.
func (f *MemberFeatures) Vector(c models.Category, layout EmbeddingLayout) []float64 {
	switch c {
	case models.CategoryPersonality:
		if p := f.Personality; p != nil {
			return []float64{p.Extraversion, p.Agreeableness, p.Conscientiousness, p.Neuroticism, p.Openness}
		}
	case models.CategorySchedule:
		if s := f.Schedule; s != nil {
			return []float64{s.SleepStart, s.SleepEnd, s.StudyIntensity}
		}
	case models.CategoryLifestyle:
		if l := f.Lifestyle; l != nil {
			return []float64{l.CleanlinessRoom, l.CleanlinessKitchen, l.NoiseTolerance}
		}
	case models.CategorySocial:
		if s := f.Social; s != nil {
			return []float64{s.GuestsFrequency, s.PartiesFrequency, s.SocialLevel}
		}
	case models.CategoryAcademic:
		if f.StudyYear != nil {
			return []float64{*f.StudyYear}
		}
		return []float64{0}
	}
	return layout.Extract(c, f.Embedding)
}
