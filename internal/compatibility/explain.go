package compatibility

import (
	"fmt"
	"strings"

	"roommate-match-workers/internal/models"
)

// rule maps one category and a score condition to a sentence fragment.
type rule struct {
	category models.Category
	applies  func(score float64) bool
	text     string
}

func atLeast(min float64) func(float64) bool { return func(s float64) bool { return s >= min } }
func below(max float64) func(float64) bool   { return func(s float64) bool { return s < max } }

var topStrengthText = map[models.Category]string{
	models.CategoryPersonality: "Strong personality alignment - you share similar communication styles and values",
	models.CategorySchedule:    "Great schedule compatibility - your daily routines align well",
	models.CategoryLifestyle:   "Lifestyle harmony - similar cleanliness and home habits",
	models.CategorySocial:      "Social preferences match - compatible guest policies and activity levels",
	models.CategoryAcademic:    "Academic alignment - similar study approaches and goals",
}

var outlierText = []rule{
	{models.CategoryPersonality, nil, "personality differences"},
	{models.CategorySchedule, nil, "schedule conflicts"},
	{models.CategoryLifestyle, nil, "lifestyle mismatches"},
	{models.CategorySocial, nil, "social preference differences"},
	{models.CategoryAcademic, nil, "academic differences"},
}

var strengthRules = []rule{
	{models.CategoryPersonality, atLeast(0.7), "strong personality alignment"},
	{models.CategorySchedule, atLeast(0.7), "compatible schedules"},
	{models.CategoryLifestyle, atLeast(0.7), "similar lifestyle preferences"},
	{models.CategorySocial, atLeast(0.7), "matching social expectations"},
	{models.CategoryAcademic, atLeast(0.7), "academic compatibility"},
}

var weaknessRules = []rule{
	{models.CategoryPersonality, below(0.5), "personality differences"},
	{models.CategorySchedule, below(0.5), "schedule conflicts"},
	{models.CategoryLifestyle, below(0.5), "lifestyle mismatches"},
	{models.CategorySocial, below(0.5), "social preference gaps"},
	{models.CategoryAcademic, below(0.5), "academic differences"},
}

var remediationRules = []rule{
	{models.CategoryLifestyle, below(0.6), "Establish a cleaning schedule and house rules early"},
	{models.CategorySchedule, below(0.6), "Discuss quiet hours and study time preferences"},
	{models.CategorySocial, below(0.6), "Set clear guest policies and social activity expectations"},
	{models.CategoryPersonality, below(0.6), "Practice open communication and respect different communication styles"},
}

const (
	noConcerns          = "No major concerns"
	moderateWatchOut    = "Moderate compatibility - some areas may need attention and communication"
	moderateWhyWorks    = "This group has moderate compatibility across all areas."
	noChallenges        = "No major compatibility concerns identified."
	fallbackSuggestion  = "Continue open communication and respect each other's preferences"
	moderateOverallMark = 0.6
)

func matching(rules []rule, score *models.GroupCompatibilityScore) []string {
	var out []string
	for _, r := range rules {
		if r.applies(score.CategoryScore(r.category)) {
			out = append(out, r.text)
		}
	}
	return out
}

// Explain builds the narrative for a scored group.
func Explain(score *models.GroupCompatibilityScore) models.Explanation {
	var exp models.Explanation

	top := models.Categories[0]
	for _, c := range models.Categories[1:] {
		if score.CategoryScore(c) > score.CategoryScore(top) {
			top = c
		}
	}
	exp.TopStrength = topStrengthText[top]

	flagged := make(map[models.Category]bool)
	for _, d := range score.MemberDeviations {
		for _, c := range d.OutlierCategories {
			flagged[c] = true
		}
	}
	var issues []string
	for _, r := range outlierText {
		if flagged[r.category] {
			issues = append(issues, r.text)
		}
	}
	switch {
	case len(issues) > 0:
		exp.WatchOuts = fmt.Sprintf("Watch out for: %s. One or more members have different preferences in these areas.",
			strings.Join(issues, ", "))
	case score.OverallScore < moderateOverallMark:
		exp.WatchOuts = moderateWatchOut
	default:
		exp.WatchOuts = noConcerns
	}

	if strengths := matching(strengthRules, score); len(strengths) > 0 {
		exp.WhyWorks = fmt.Sprintf("This group works well because of %s.", strings.Join(strengths, ", "))
	} else {
		exp.WhyWorks = moderateWhyWorks
	}

	if weaknesses := matching(weaknessRules, score); len(weaknesses) > 0 {
		exp.WhyDoesntWork = fmt.Sprintf("Potential challenges: %s. Open communication and setting clear expectations will be important.",
			strings.Join(weaknesses, ", "))
	} else {
		exp.WhyDoesntWork = noChallenges
	}

	if tips := matching(remediationRules, score); len(tips) > 0 {
		exp.Suggestions = strings.Join(tips, " ")
	} else {
		exp.Suggestions = fallbackSuggestion
	}

	return exp
}
