package logbook

import "math"

// Targets are the daily macro goals derived from lean body mass.
type Targets struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// ComputeTargets: 45 kcal and 3 g protein per kg of lean mass, 20% of energy
// from fat, carbs fill the rest.
func ComputeTargets(lbm float64) Targets {
	calories := lbm * 45
	protein := lbm * 3
	fat := calories * 0.2 / 9
	carbs := (calories - protein*4 - fat*9) / 4
	return Targets{
		Calories: math.Round(calories),
		Protein:  round1(protein),
		Fat:      round1(fat),
		Carbs:    round1(carbs),
	}
}

// ComputeBMR prefers Katch-McArdle when lean body mass is known and falls
// back to Mifflin-St Jeor (male constant). ok is false when neither applies.
func ComputeBMR(c *UserConfig) (bmr float64, ok bool) {
	if c == nil {
		return 0, false
	}
	if c.LeanBodyMass != nil && *c.LeanBodyMass > 0 {
		lbm := *c.LeanBodyMass
		return math.Round(370 + 21.6*lbm), true
	}
	if c.WeightKG != nil && c.HeightCM != nil && c.Age != nil {
		w, h, age := *c.WeightKG, *c.HeightCM, float64(*c.Age)
		return math.Round(10*w + 6.25*h - 5*age + 5), true
	}
	return 0, false
}

// recompute refreshes every derived field of c.
func recompute(c *UserConfig) {
	if c.LeanBodyMass != nil && *c.LeanBodyMass > 0 {
		t := ComputeTargets(*c.LeanBodyMass)
		c.BaseCalories = &t.Calories
		c.BaseProtein = &t.Protein
		c.BaseFat = &t.Fat
		c.BaseCarbs = &t.Carbs
	}
	if bmr, ok := ComputeBMR(c); ok {
		c.BMR = &bmr
	} else {
		c.BMR = nil
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
