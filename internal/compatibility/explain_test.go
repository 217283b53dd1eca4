package compatibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"roommate-match-workers/internal/models"
)

func scored(overall, personality, schedule, lifestyle, social, academic float64) *models.GroupCompatibilityScore {
	return &models.GroupCompatibilityScore{
		OverallScore: overall,
		Personality:  personality,
		Schedule:     schedule,
		Lifestyle:    lifestyle,
		Social:       social,
		Academic:     academic,
	}
}

func TestExplain(t *testing.T) {
	tests := []struct {
		name  string
		score *models.GroupCompatibilityScore
		want  models.Explanation
	}{
		{
			name:  "strong group",
			score: scored(0.9, 0.8, 0.95, 0.7, 0.75, 0.9),
			want: models.Explanation{
				TopStrength:   "Great schedule compatibility - your daily routines align well",
				WatchOuts:     "No major concerns",
				WhyWorks:      "This group works well because of strong personality alignment, compatible schedules, similar lifestyle preferences, matching social expectations, academic compatibility.",
				WhyDoesntWork: "No major compatibility concerns identified.",
				Suggestions:   "Continue open communication and respect each other's preferences",
			},
		},
		{
			name:  "weak group",
			score: scored(0.45, 0.4, 0.55, 0.3, 0.59, 0.6),
			want: models.Explanation{
				TopStrength:   "Academic alignment - similar study approaches and goals",
				WatchOuts:     "Moderate compatibility - some areas may need attention and communication",
				WhyWorks:      "This group has moderate compatibility across all areas.",
				WhyDoesntWork: "Potential challenges: personality differences, lifestyle mismatches. Open communication and setting clear expectations will be important.",
				Suggestions: "Establish a cleaning schedule and house rules early " +
					"Discuss quiet hours and study time preferences " +
					"Set clear guest policies and social activity expectations " +
					"Practice open communication and respect different communication styles",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Explain(tt.score))
		})
	}
}

func TestExplain_OutliersListedInCategoryOrder(t *testing.T) {
	s := scored(0.8, 0.8, 0.8, 0.8, 0.8, 0.8)
	s.MemberDeviations = []models.MemberDeviation{
		{UserID: "a", OutlierCategories: []models.Category{models.CategorySocial}},
		{UserID: "b", OutlierCategories: []models.Category{models.CategoryAcademic, models.CategoryPersonality}},
	}

	exp := Explain(s)

	assert.Equal(t,
		"Watch out for: personality differences, social preference differences, academic differences. One or more members have different preferences in these areas.",
		exp.WatchOuts)
	assert.Equal(t, topStrengthText[models.CategoryPersonality], exp.TopStrength)
}
