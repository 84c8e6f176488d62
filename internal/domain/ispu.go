package domain

import (
	"math"
	"strconv"
	"strings"
)

// Category is one band of the ISPU scale. Min and Max are inclusive; the top
// band is open-ended with Max = +Inf.
type Category struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	Min         float64 `json:"min"`
	Max         float64 `json:"-"`
	Description string  `json:"description"`
}

// categories is the single source of truth for the ISPU bands, in ascending order.
var categories = [...]Category{
	{
		Key:         "BAIK",
		Name:        "BAIK",
		Color:       "#00e400",
		Min:         0,
		Max:         50,
		Description: "Kualitas udara sangat baik, tidak memberikan efek negatif terhadap manusia, hewan, dan tumbuhan",
	},
	{
		Key:         "SEDANG",
		Name:        "SEDANG",
		Color:       "#0000FF",
		Min:         51,
		Max:         100,
		Description: "Kualitas udara yang dapat diterima, namun beberapa polutan mungkin sedang pada tingkat sedang",
	},
	{
		Key:         "TIDAK_SEHAT",
		Name:        "TIDAK SEHAT",
		Color:       "#eebb00",
		Min:         101,
		Max:         200,
		Description: "Mulai memberikan efek negatif pada manusia, hewan dan tumbuhan yang sensitif",
	},
	{
		Key:         "SANGAT_TIDAK_SEHAT",
		Name:        "SANGAT TIDAK SEHAT",
		Color:       "#ff0000",
		Min:         201,
		Max:         300,
		Description: "Tingkat kualitas udara yang merugikan kesehatan pada sejumlah segmen populasi yang terpapar",
	},
	{
		Key:         "BERBAHAYA",
		Name:        "BERBAHAYA",
		Color:       "#8f3f97",
		Min:         301,
		Max:         math.Inf(1),
		Description: "Tingkat kualitas udara berbahaya yang bersifat merugikan kesehatan serius pada populasi",
	},
}

// MaxValidISPU is the upper bound accepted by Validate.
const MaxValidISPU = 1000

// Classify maps an ISPU value to its band. NaN and negative values are
// treated as 0, so every input yields a category.
func Classify(index float64) Category {
	v := normalizeIndex(index)
	for _, c := range categories {
		if v <= c.Max {
			return c
		}
	}
	return categories[len(categories)-1]
}

// Validate reports whether index is a plausible ISPU reading in [0, 1000].
// It is independent of Classify, which accepts any value.
func Validate(index float64) bool {
	return !math.IsNaN(index) && index >= 0 && index <= MaxValidISPU
}

// ListCategories returns all bands in ascending order for legend rendering.
func ListCategories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories[:])
	return out
}

// CategoryByName finds a band by its key ("TIDAK_SEHAT") or display name
// ("Tidak Sehat"). Matching ignores case and treats spaces and underscores alike.
func CategoryByName(name string) (Category, bool) {
	want := categoryToken(name)
	if want == "" {
		return Category{}, false
	}
	for _, c := range categories {
		if categoryToken(c.Key) == want || categoryToken(c.Name) == want {
			return c, true
		}
	}
	return Category{}, false
}

// OpenEnded reports whether the band has no upper bound.
func (c Category) OpenEnded() bool {
	return math.IsInf(c.Max, 1)
}

// RangeLabel renders the band range for legends, e.g. "51 - 100" or "301+".
func (c Category) RangeLabel() string {
	lo := strconv.FormatFloat(c.Min, 'f', -1, 64)
	if c.OpenEnded() {
		return lo + "+"
	}
	return lo + " - " + strconv.FormatFloat(c.Max, 'f', -1, 64)
}

func normalizeIndex(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func categoryToken(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '_' }), "_")
}
