// Package nutrition turns a food description into a nutrient record, from
// cache when possible and from the completion service otherwise.
package nutrition

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

// Facts is one food's nutrients. Unknown values are 0.
type Facts struct {
	Calories   float64 `json:"calories"`
	Protein    float64 `json:"protein"`
	Fat        float64 `json:"fat"`
	Carbs      float64 `json:"carbs"`
	Score      int     `json:"score"`
	VitaminA   float64 `json:"vitamin_a"`
	VitaminC   float64 `json:"vitamin_c"`
	VitaminD   float64 `json:"vitamin_d"`
	VitaminE   float64 `json:"vitamin_e"`
	VitaminB1  float64 `json:"vitamin_b1"`
	VitaminB2  float64 `json:"vitamin_b2"`
	VitaminB6  float64 `json:"vitamin_b6"`
	VitaminB12 float64 `json:"vitamin_b12"`
	Calcium    float64 `json:"calcium"`
	Iron       float64 `json:"iron"`
	Potassium  float64 `json:"potassium"`
	Magnesium  float64 `json:"magnesium"`
	Zinc       float64 `json:"zinc"`
	Choline    float64 `json:"choline"`
}

const (
	SourceCache = "cache"
	SourceAI    = "ai"
)

type Result struct {
	Facts
	Source string `json:"source"`
}

// fields maps every JSON key to its slot; score is handled separately.
func (f *Facts) fields() map[string]*float64 {
	return map[string]*float64{
		"calories":    &f.Calories,
		"protein":     &f.Protein,
		"fat":         &f.Fat,
		"carbs":       &f.Carbs,
		"vitamin_a":   &f.VitaminA,
		"vitamin_c":   &f.VitaminC,
		"vitamin_d":   &f.VitaminD,
		"vitamin_e":   &f.VitaminE,
		"vitamin_b1":  &f.VitaminB1,
		"vitamin_b2":  &f.VitaminB2,
		"vitamin_b6":  &f.VitaminB6,
		"vitamin_b12": &f.VitaminB12,
		"calcium":     &f.Calcium,
		"iron":        &f.Iron,
		"potassium":   &f.Potassium,
		"magnesium":   &f.Magnesium,
		"zinc":        &f.Zinc,
		"choline":     &f.Choline,
	}
}

// sanitize zeroes negative or non-finite values and clamps the score.
func (f *Facts) sanitize() {
	for _, p := range f.fields() {
		if math.IsNaN(*p) || math.IsInf(*p, 0) || *p < 0 {
			*p = 0
		}
	}
	if f.Score < 0 {
		f.Score = 0
	}
	if f.Score > 100 {
		f.Score = 100
	}
}

// CacheEntry persists a looked-up record under its raw key. Rows are never
// updated or expired.
type CacheEntry struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	CacheKey  string         `gorm:"column:cache_key;type:varchar(255);uniqueIndex;not null"`
	Facts     datatypes.JSON `gorm:"column:facts"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (CacheEntry) TableName() string { return "food_cache" }
