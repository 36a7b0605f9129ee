package logbook

import "time"

// DailyRecord is one row per calendar date. Nil fields were never recorded.
type DailyRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	Date          string    `gorm:"column:date;type:varchar(10);uniqueIndex;not null" json:"date"`
	WeightAM      *float64  `gorm:"column:weight_am" json:"weight_am"`
	WeightPM      *float64  `gorm:"column:weight_pm" json:"weight_pm"`
	Memo          *string   `gorm:"column:memo;type:text" json:"memo"`
	SleepHours    *float64  `gorm:"column:sleep_hours" json:"sleep_hours"`
	CardioMinutes *int      `gorm:"column:cardio_minutes" json:"cardio_minutes"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"-"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"-"`
}

func (DailyRecord) TableName() string { return "daily_records" }

// Micronutrients are optional per entry; units follow the usual label
// conventions (vitamin A/D/B12 in µg, the rest in mg).
type Micronutrients struct {
	VitaminA   *float64 `gorm:"column:vitamin_a" json:"vitamin_a"`
	VitaminC   *float64 `gorm:"column:vitamin_c" json:"vitamin_c"`
	VitaminD   *float64 `gorm:"column:vitamin_d" json:"vitamin_d"`
	VitaminE   *float64 `gorm:"column:vitamin_e" json:"vitamin_e"`
	VitaminB1  *float64 `gorm:"column:vitamin_b1" json:"vitamin_b1"`
	VitaminB2  *float64 `gorm:"column:vitamin_b2" json:"vitamin_b2"`
	VitaminB6  *float64 `gorm:"column:vitamin_b6" json:"vitamin_b6"`
	VitaminB12 *float64 `gorm:"column:vitamin_b12" json:"vitamin_b12"`
	Calcium    *float64 `gorm:"column:calcium" json:"calcium"`
	Iron       *float64 `gorm:"column:iron" json:"iron"`
	Potassium  *float64 `gorm:"column:potassium" json:"potassium"`
	Magnesium  *float64 `gorm:"column:magnesium" json:"magnesium"`
	Zinc       *float64 `gorm:"column:zinc" json:"zinc"`
	Choline    *float64 `gorm:"column:choline" json:"choline"`
}

// microColumns must stay in the same order as values().
const microColumns = "vitamin_a, vitamin_c, vitamin_d, vitamin_e, vitamin_b1, vitamin_b2, vitamin_b6, vitamin_b12, calcium, iron, potassium, magnesium, zinc, choline"

func (m Micronutrients) values() []any {
	return []any{
		m.VitaminA, m.VitaminC, m.VitaminD, m.VitaminE,
		m.VitaminB1, m.VitaminB2, m.VitaminB6, m.VitaminB12,
		m.Calcium, m.Iron, m.Potassium, m.Magnesium, m.Zinc, m.Choline,
	}
}

type FoodLog struct {
	ID       int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Date     string  `gorm:"column:date;type:varchar(10);index;not null" json:"date"`
	FoodName string  `gorm:"column:food_name;type:varchar(255);index;not null" json:"food_name"`
	Amount   float64 `gorm:"column:amount;not null" json:"amount"`
	Unit     string  `gorm:"column:unit;type:varchar(32);not null" json:"unit"`
	Calories float64 `gorm:"column:calories" json:"calories"`
	Protein  float64 `gorm:"column:protein" json:"protein"`
	Fat      float64 `gorm:"column:fat" json:"fat"`
	Carbs    float64 `gorm:"column:carbs" json:"carbs"`
	Score    int     `gorm:"column:score" json:"score"`
	Micronutrients
	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (FoodLog) TableName() string { return "food_logs" }

// UserConfig is a singleton (id = 1).
type UserConfig struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"-"`
	LeanBodyMass *float64  `gorm:"column:lean_body_mass" json:"lean_body_mass"`
	HeightCM     *float64  `gorm:"column:height_cm" json:"height_cm"`
	WeightKG     *float64  `gorm:"column:weight_kg" json:"weight_kg"`
	Age          *int      `gorm:"column:age" json:"age"`
	BaseCalories *float64  `gorm:"column:base_calories" json:"base_calories"`
	BaseProtein  *float64  `gorm:"column:base_protein" json:"base_protein"`
	BaseFat      *float64  `gorm:"column:base_fat" json:"base_fat"`
	BaseCarbs    *float64  `gorm:"column:base_carbs" json:"base_carbs"`
	BMR          *float64  `gorm:"column:bmr" json:"bmr"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (UserConfig) TableName() string { return "user_config" }

// HasTargets reports whether macro targets have been computed.
func (c *UserConfig) HasTargets() bool {
	return c != nil && c.BaseCalories != nil
}

type Totals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// DayTotal is one date's summed intake.
type DayTotal struct {
	Date          string  `gorm:"column:date" json:"date"`
	TotalCalories float64 `gorm:"column:total_calories" json:"total_calories"`
	TotalProtein  float64 `gorm:"column:total_protein" json:"total_protein"`
	TotalFat      float64 `gorm:"column:total_fat" json:"total_fat"`
	TotalCarbs    float64 `gorm:"column:total_carbs" json:"total_carbs"`
}

// WeightPoint is a dated morning weight.
type WeightPoint struct {
	Date     string  `gorm:"column:date" json:"date"`
	WeightAM float64 `gorm:"column:weight_am" json:"weight_am"`
}

func SumFoods(foods []FoodLog) Totals {
	var t Totals
	for _, f := range foods {
		t.Calories += f.Calories
		t.Protein += f.Protein
		t.Fat += f.Fat
		t.Carbs += f.Carbs
	}
	return t
}
