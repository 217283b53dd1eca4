package compatibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommate-match-workers/internal/models"
)

func TestLayoutFor(t *testing.T) {
	l, err := LayoutFor("")
	require.NoError(t, err)
	assert.Equal(t, "v1", l.Version)

	_, err = LayoutFor("v9")
	assert.ErrorContains(t, err, `unknown embedding layout "v9"`)
}

func TestLayoutValidate(t *testing.T) {
	withCategories := func(mutate func(map[models.Category][]Field)) EmbeddingLayout {
		cats := map[models.Category][]Field{}
		for c, f := range LayoutV1.Categories {
			cats[c] = append([]Field(nil), f...)
		}
		mutate(cats)
		return EmbeddingLayout{Version: "test", Size: 50, Categories: cats}
	}

	tests := []struct {
		name   string
		layout EmbeddingLayout
		errMsg string
	}{
		{"v1 is valid", LayoutV1, ""},
		{"zero size", EmbeddingLayout{Version: "test"}, "size must be positive"},
		{"index out of range", withCategories(func(c map[models.Category][]Field) {
			c[models.CategorySocial][2].Index = 50
		}), "outside [0,50)"},
		{"shared index", withCategories(func(c map[models.Category][]Field) {
			c[models.CategorySocial][2].Index = 0
		}), "index 0 used by"},
		{"missing category", withCategories(func(c map[models.Category][]Field) {
			delete(c, models.CategoryLifestyle)
		}), "no fields for lifestyle"},
		{"academic embedded", withCategories(func(c map[models.Category][]Field) {
			c[models.CategoryAcademic] = []Field{{"study_year", 30}}
		}), "academic features are not embedded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestExtract_PadsAndTruncates(t *testing.T) {
	short := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	assert.Equal(t, []float64{7, 8, 0}, LayoutV1.Extract(models.CategorySocial, short))
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, LayoutV1.Extract(models.CategoryPersonality, short))

	long := make([]float64, 80)
	for i := range long {
		long[i] = float64(i)
	}
	assert.Equal(t, []float64{20, 21, 22, 23, 24}, LayoutV1.Extract(models.CategoryPersonality, long))
}

func TestFeatureVector_StructuredWins(t *testing.T) {
	emb := make([]float64, 50)
	emb[0], emb[1], emb[2] = 9, 9, 9
	f := &MemberFeatures{
		Embedding: emb,
		Schedule:  &ScheduleData{SleepStart: 1, SleepEnd: 2, StudyIntensity: 3},
	}

	assert.Equal(t, []float64{1, 2, 3}, f.Vector(models.CategorySchedule, LayoutV1))
	assert.Equal(t, []float64{0, 0, 0}, f.Vector(models.CategoryLifestyle, LayoutV1))
	assert.Equal(t, []float64{0}, f.Vector(models.CategoryAcademic, LayoutV1))
	assert.True(t, f.Resolvable())
}
