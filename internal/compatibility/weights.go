package compatibility

import "roommate-match-workers/internal/models"

var intentWeights = map[models.GroupIntent]map[models.Category]float64{
	models.IntentHousing: {
		models.CategoryPersonality: 0.30,
		models.CategorySchedule:    0.25,
		models.CategoryLifestyle:   0.20,
		models.CategorySocial:      0.15,
		models.CategoryAcademic:    0.10,
	},
	models.IntentStudy: {
		models.CategoryPersonality: 0.20,
		models.CategorySchedule:    0.30,
		models.CategoryLifestyle:   0.15,
		models.CategorySocial:      0.10,
		models.CategoryAcademic:    0.25,
	},
	models.IntentSocial: {
		models.CategoryPersonality: 0.35,
		models.CategorySchedule:    0.10,
		models.CategoryLifestyle:   0.15,
		models.CategorySocial:      0.30,
		models.CategoryAcademic:    0.10,
	},
	models.IntentGeneral: {
		models.CategoryPersonality: 0.25,
		models.CategorySchedule:    0.20,
		models.CategoryLifestyle:   0.20,
		models.CategorySocial:      0.20,
		models.CategoryAcademic:    0.15,
	},
}

// NormalizeIntent maps empty or unknown intents to general.
func NormalizeIntent(intent models.GroupIntent) models.GroupIntent {
	if _, ok := intentWeights[intent]; ok {
		return intent
	}
	return models.IntentGeneral
}

// WeightsFor returns a copy of the category weights for intent.
func WeightsFor(intent models.GroupIntent) map[models.Category]float64 {
	src := intentWeights[NormalizeIntent(intent)]
	out := make(map[models.Category]float64, len(src))
	for c, w := range src {
		out[c] = w
	}
	return out
}
