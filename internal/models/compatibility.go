// internal/models/compatibility.go
package models

import "time"

type Category string

const (
	CategoryPersonality Category = "personality"
	CategorySchedule    Category = "schedule"
	CategoryLifestyle   Category = "lifestyle"
	CategorySocial      Category = "social"
	CategoryAcademic    Category = "academic"
)

// Categories is the canonical order used for ties and output.
var Categories = []Category{
	CategoryPersonality,
	CategorySchedule,
	CategoryLifestyle,
	CategorySocial,
	CategoryAcademic,
}

type GroupIntent string

const (
	IntentHousing GroupIntent = "housing"
	IntentStudy   GroupIntent = "study"
	IntentSocial  GroupIntent = "social"
	IntentGeneral GroupIntent = "general"
)

// Cohort is the input of a compatibility computation.
type Cohort struct {
	ChatID      string      `json:"chatId"`
	MemberIDs   []string    `json:"memberIds"`
	GroupIntent GroupIntent `json:"groupIntent"`
}

type MemberDeviation struct {
	UserID            string               `json:"userId"`
	Distances         map[Category]float64 `json:"distances"`
	Scores            map[Category]float64 `json:"scores"`
	IsOutlier         bool                 `json:"isOutlier"`
	OutlierCategories []Category           `json:"outlierCategories"`
}

type Explanation struct {
	TopStrength   string `json:"top_strength"`
	WatchOuts     string `json:"watch_outs"`
	WhyWorks      string `json:"why_works"`
	WhyDoesntWork string `json:"why_doesnt_work"`
	Suggestions   string `json:"suggestions"`
}

type GroupCompatibilityScore struct {
	ChatID           string               `json:"chatId"`
	GroupIntent      GroupIntent          `json:"groupIntent"`
	OverallScore     float64              `json:"overallScore"`
	Personality      float64              `json:"personalityScore"`
	Schedule         float64              `json:"scheduleScore"`
	Lifestyle        float64              `json:"lifestyleScore"`
	Social           float64              `json:"socialScore"`
	Academic         float64              `json:"academicScore"`
	CategoryWeights  map[Category]float64 `json:"categoryWeights"`
	MemberDeviations []MemberDeviation    `json:"memberDeviations"`
	Explanation      Explanation          `json:"explanation"`
	CalculatedAt     time.Time            `json:"calculatedAt"`
}

// CategoryScore returns the aggregate score for c.
func (g *GroupCompatibilityScore) CategoryScore(c Category) float64 {
	switch c {
	case CategoryPersonality:
		return g.Personality
	case CategorySchedule:
		return g.Schedule
	case CategoryLifestyle:
		return g.Lifestyle
	case CategorySocial:
		return g.Social
	case CategoryAcademic:
		return g.Academic
	}
	return 0
}

// SetCategoryScore is the write counterpart of CategoryScore.
func (g *GroupCompatibilityScore) SetCategoryScore(c Category, v float64) {
	switch c {
	case CategoryPersonality:
		g.Personality = v
	case CategorySchedule:
		g.Schedule = v
	case CategoryLifestyle:
		g.Lifestyle = v
	case CategorySocial:
		g.Social = v
	case CategoryAcademic:
		g.Academic = v
	}
}
