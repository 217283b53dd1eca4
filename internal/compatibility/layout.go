// Package compatibility scores how well a group of members fits together.
package compatibility

import (
	"fmt"
	"sort"

	"roommate-match-workers/internal/models"
)

// Field is one named slot of the member embedding.
type Field struct {
	Name  string
	Index int
}

// EmbeddingLayout says where each category's features live in the member
// embedding. Academic features are never embedded.
type EmbeddingLayout struct {
	Version    string
	Size       int
	Categories map[models.Category][]Field
}

// LayoutV1 is the 50-slot layout written by the vector builder.
var LayoutV1 = EmbeddingLayout{
	Version: "v1",
	Size:    50,
	Categories: map[models.Category][]Field{
		models.CategorySchedule: {
			{"sleep_start", 0},
			{"sleep_end", 1},
			{"study_intensity", 2},
		},
		models.CategoryLifestyle: {
			{"cleanliness_room", 3},
			{"cleanliness_kitchen", 4},
			{"noise_tolerance", 5},
		},
		models.CategorySocial: {
			{"guests_frequency", 6},
			{"parties_frequency", 7},
			{"social_level", 10},
		},
		models.CategoryPersonality: {
			{"extraversion", 20},
			{"agreeableness", 21},
			{"conscientiousness", 22},
			{"neuroticism", 23},
			{"openness", 24},
		},
	},
}

var layouts = map[string]EmbeddingLayout{
	LayoutV1.Version: LayoutV1,
}

// LayoutFor returns the validated layout registered under version.
func LayoutFor(version string) (EmbeddingLayout, error) {
	if version == "" {
		version = LayoutV1.Version
	}
	l, ok := layouts[version]
	if !ok {
		known := make([]string, 0, len(layouts))
		for v := range layouts {
			known = append(known, v)
		}
		sort.Strings(known)
		return EmbeddingLayout{}, fmt.Errorf("unknown embedding layout %q (known: %v)", version, known)
	}
	if err := l.Validate(); err != nil {
		return EmbeddingLayout{}, err
	}
	return l, nil
}

// Validate rejects layouts with out-of-range, shared or unnamed slots.
func (l EmbeddingLayout) Validate() error {
	if l.Size <= 0 {
		return fmt.Errorf("layout %s: size must be positive", l.Version)
	}
	if _, ok := l.Categories[models.CategoryAcademic]; ok {
		return fmt.Errorf("layout %s: academic features are not embedded", l.Version)
	}

	usedIndex := make(map[int]string)
	usedName := make(map[string]struct{})
	for _, c := range models.Categories {
		if c == models.CategoryAcademic {
			continue
		}
		fields, ok := l.Categories[c]
		if !ok || len(fields) == 0 {
			return fmt.Errorf("layout %s: no fields for %s", l.Version, c)
		}
		for _, f := range fields {
			if f.Name == "" {
				return fmt.Errorf("layout %s: unnamed field in %s", l.Version, c)
			}
			if f.Index < 0 || f.Index >= l.Size {
				return fmt.Errorf("layout %s: %s index %d outside [0,%d)", l.Version, f.Name, f.Index, l.Size)
			}
			if prev, dup := usedIndex[f.Index]; dup {
				return fmt.Errorf("layout %s: index %d used by %s and %s", l.Version, f.Index, prev, f.Name)
			}
			if _, dup := usedName[f.Name]; dup {
				return fmt.Errorf("layout %s: field %s declared twice", l.Version, f.Name)
			}
			usedIndex[f.Index] = f.Name
			usedName[f.Name] = struct{}{}
		}
	}
	if len(l.Categories) != len(models.Categories)-1 {
		return fmt.Errorf("layout %s: unexpected categories", l.Version)
	}
	return nil
}

// Extract reads a category sub-vector. The embedding is treated as zero-padded
// or truncated to Size.
func (l EmbeddingLayout) Extract(c models.Category, embedding []float64) []float64 {
	fields := l.Categories[c]
	out := make([]float64, len(fields))
	for i, f := range fields {
		if f.Index < len(embedding) && f.Index < l.Size {
			out[i] = embedding[f.Index]
		}
	}
	return out
}
