package logbook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/macrolog/internal/store"
)

const DateLayout = "2006-01-02"

var ErrInvalid = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ParseDate validates a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, invalid("date must be YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

// Today is the current local date.
func Today() string {
	return time.Now().Format(DateLayout)
}

// DailyPatch is a partial daily record; nil fields are left unchanged.
type DailyPatch struct {
	Date          string   `json:"date"`
	WeightAM      *float64 `json:"weight_am"`
	WeightPM      *float64 `json:"weight_pm"`
	Memo          *string  `json:"memo"`
	SleepHours    *float64 `json:"sleep_hours"`
	CardioMinutes *int     `json:"cardio_minutes"`
}

func (p DailyPatch) apply(rec *DailyRecord) {
	if p.WeightAM != nil {
		rec.WeightAM = p.WeightAM
	}
	if p.WeightPM != nil {
		rec.WeightPM = p.WeightPM
	}
	if p.Memo != nil {
		rec.Memo = p.Memo
	}
	if p.SleepHours != nil {
		rec.SleepHours = p.SleepHours
	}
	if p.CardioMinutes != nil {
		rec.CardioMinutes = p.CardioMinutes
	}
}

func (p DailyPatch) validate() error {
	if _, err := ParseDate(p.Date); err != nil {
		return err
	}
	for name, v := range map[string]*float64{"weight_am": p.WeightAM, "weight_pm": p.WeightPM} {
		if v != nil && *v <= 0 {
			return invalid("%s must be positive", name)
		}
	}
	if p.SleepHours != nil && (*p.SleepHours < 0 || *p.SleepHours > 24) {
		return invalid("sleep_hours must be between 0 and 24")
	}
	if p.CardioMinutes != nil && *p.CardioMinutes < 0 {
		return invalid("cardio_minutes must not be negative")
	}
	return nil
}

// ConfigPatch updates the inputs of the user config; targets are derived.
type ConfigPatch struct {
	LeanBodyMass *float64 `json:"lean_body_mass"`
	HeightCM     *float64 `json:"height_cm"`
	WeightKG     *float64 `json:"weight_kg"`
	Age          *int     `json:"age"`
}

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

func (s *Service) Repo() *Repo { return s.repo }

// Daily returns the record for date; a missing record comes back empty.
func (s *Service) Daily(ctx context.Context, date string) (*DailyRecord, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	rec, err := s.repo.GetDaily(ctx, date)
	if errors.Is(err, store.ErrNotFound) {
		return &DailyRecord{Date: date}, nil
	}
	return rec, err
}

func (s *Service) RecentDaily(ctx context.Context, days int) ([]DailyRecord, error) {
	return s.repo.RecentDaily(ctx, ClampDays(days))
}

func (s *Service) SaveDaily(ctx context.Context, p DailyPatch) (*DailyRecord, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return s.repo.UpsertDaily(ctx, p)
}

// FoodsOn returns the date's entries (newest first) and their totals.
func (s *Service) FoodsOn(ctx context.Context, date string) ([]FoodLog, Totals, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, Totals{}, err
	}
	foods, err := s.repo.ListFoods(ctx, date)
	if err != nil {
		return nil, Totals{}, err
	}
	if foods == nil {
		foods = []FoodLog{}
	}
	return foods, SumFoods(foods), nil
}

func (s *Service) FoodTotals(ctx context.Context, days int) ([]DayTotal, error) {
	return s.repo.DailyTotals(ctx, ClampDays(days))
}

func (s *Service) AddFood(ctx context.Context, f FoodLog) (*FoodLog, error) {
	f.FoodName = strings.TrimSpace(f.FoodName)
	f.Unit = strings.TrimSpace(f.Unit)
	if f.Unit == "" {
		f.Unit = "g"
	}
	if err := validateFood(f); err != nil {
		return nil, err
	}
	f.ID = 0
	f.CreatedAt = time.Time{}
	if err := s.repo.InsertFood(ctx, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func validateFood(f FoodLog) error {
	if _, err := ParseDate(f.Date); err != nil {
		return err
	}
	if f.FoodName == "" {
		return invalid("food_name is required")
	}
	if f.Amount <= 0 {
		return invalid("amount must be positive")
	}
	if f.Score < 0 || f.Score > 100 {
		return invalid("score must be between 0 and 100")
	}
	if f.Calories < 0 || f.Protein < 0 || f.Fat < 0 || f.Carbs < 0 {
		return invalid("calories and macros must not be negative")
	}
	for _, v := range f.Micronutrients.values() {
		if p := v.(*float64); p != nil && *p < 0 {
			return invalid("micronutrients must not be negative")
		}
	}
	return nil
}

// DeleteFood returns store.ErrNotFound when id does not exist.
func (s *Service) DeleteFood(ctx context.Context, id int64) error {
	ok, err := s.repo.DeleteFood(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *Service) DuplicateFood(ctx context.Context, id int64, date string) (*FoodLog, error) {
	if date != "" {
		if _, err := ParseDate(date); err != nil {
			return nil, err
		}
	}
	return s.repo.DuplicateFood(ctx, id, date)
}

func (s *Service) Suggest(ctx context.Context, q string) ([]string, error) {
	names, err := s.repo.SuggestNames(ctx, strings.TrimSpace(q))
	if names == nil {
		names = []string{}
	}
	return names, err
}

// Config returns the singleton; before the first save it is empty.
func (s *Service) Config(ctx context.Context) (*UserConfig, error) {
	c, err := s.repo.GetConfig(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return &UserConfig{ID: configID}, nil
	}
	return c, err
}

// UpdateConfig merges p and recomputes targets and BMR.
func (s *Service) UpdateConfig(ctx context.Context, p ConfigPatch) (*UserConfig, error) {
	if p.LeanBodyMass == nil && p.HeightCM == nil && p.WeightKG == nil && p.Age == nil {
		return nil, invalid("nothing to update")
	}
	if p.LeanBodyMass != nil && *p.LeanBodyMass <= 0 {
		return nil, invalid("lean_body_mass must be positive")
	}
	if (p.HeightCM != nil && *p.HeightCM <= 0) || (p.WeightKG != nil && *p.WeightKG <= 0) || (p.Age != nil && *p.Age <= 0) {
		return nil, invalid("height_cm, weight_kg and age must be positive")
	}
	return s.repo.SaveConfig(ctx, func(c *UserConfig) error {
		if p.LeanBodyMass != nil {
			c.LeanBodyMass = p.LeanBodyMass
		}
		if p.HeightCM != nil {
			c.HeightCM = p.HeightCM
		}
		if p.WeightKG != nil {
			c.WeightKG = p.WeightKG
		}
		if p.Age != nil {
			c.Age = p.Age
		}
		recompute(c)
		return nil
	})
}

// ClampDays bounds a window size to 1..365, defaulting to 7.
func ClampDays(days int) int {
	if days <= 0 {
		return 7
	}
	if days > 365 {
		return 365
	}
	return days
}
