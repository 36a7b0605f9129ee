package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/suPer8Hu/macrolog/internal/logbook"
	"github.com/suPer8Hu/macrolog/internal/store"
	"golang.org/x/sync/errgroup"
)

const (
	trendDays    = 7
	mealsPreview = 3
)

// DailyReader is the part of the logbook the summarizer reads.
type DailyReader interface {
	GetDaily(ctx context.Context, date string) (*logbook.DailyRecord, error)
	ListFoods(ctx context.Context, date string) ([]logbook.FoodLog, error)
	GetConfig(ctx context.Context) (*logbook.UserConfig, error)
	DailyTotalsBetween(ctx context.Context, from, to string, limit int) ([]logbook.DayTotal, error)
	WeightsBetween(ctx context.Context, from, to string, limit int) ([]logbook.WeightPoint, error)
}

type Summarizer struct {
	reader DailyReader
}

func NewSummarizer(reader DailyReader) *Summarizer {
	return &Summarizer{reader: reader}
}

type daySnapshot struct {
	date    string
	record  *logbook.DailyRecord
	foods   []logbook.FoodLog
	config  *logbook.UserConfig
	totals  []logbook.DayTotal
	weights []logbook.WeightPoint
}

// Summarize renders the digest for date (today when empty). Missing
// records become placeholders; only real read failures are errors.
func (s *Summarizer) Summarize(ctx context.Context, date string) (string, error) {
	if date == "" {
		date = logbook.Today()
	}
	day, err := logbook.ParseDate(date)
	if err != nil {
		return "", err
	}
	from := day.AddDate(0, 0, -trendDays).Format(logbook.DateLayout)

	snap := daySnapshot{date: date}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := s.reader.GetDaily(gctx, date)
		snap.record = rec
		return ignoreNotFound(err)
	})
	g.Go(func() error {
		foods, err := s.reader.ListFoods(gctx, date)
		snap.foods = foods
		return err
	})
	g.Go(func() error {
		cfg, err := s.reader.GetConfig(gctx)
		snap.config = cfg
		return ignoreNotFound(err)
	})
	g.Go(func() error {
		totals, err := s.reader.DailyTotalsBetween(gctx, from, date, trendDays)
		snap.totals = totals
		return err
	})
	g.Go(func() error {
		weights, err := s.reader.WeightsBetween(gctx, from, date, trendDays)
		snap.weights = weights
		return err
	})
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("summarize %s: %w", date, err)
	}
	return snap.render(), nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (d daySnapshot) render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[Today (%s)]\n", d.date)
	if d.record != nil && d.record.WeightAM != nil {
		fmt.Fprintf(&b, "- Morning weight: %s kg\n", num(*d.record.WeightAM))
	} else {
		b.WriteString("- Morning weight: not recorded\n")
	}
	t := logbook.SumFoods(d.foods)
	fmt.Fprintf(&b, "- Intake: %.0f kcal, P %.1f g, F %.1f g, C %.1f g\n", t.Calories, t.Protein, t.Fat, t.Carbs)
	fmt.Fprintf(&b, "- Meals: %d (%s)\n", len(d.foods), mealList(d.foods))
	if d.record != nil {
		if d.record.SleepHours != nil {
			fmt.Fprintf(&b, "- Sleep: %s h\n", num(*d.record.SleepHours))
		}
		if d.record.CardioMinutes != nil {
			fmt.Fprintf(&b, "- Cardio: %d min\n", *d.record.CardioMinutes)
		}
		if d.record.Memo != nil && strings.TrimSpace(*d.record.Memo) != "" {
			fmt.Fprintf(&b, "- Memo: %s\n", strings.TrimSpace(*d.record.Memo))
		}
	}

	b.WriteString("\n[Targets]\n")
	if c := d.config; c.HasTargets() {
		fmt.Fprintf(&b, "- %s kcal, P %s g, F %s g, C %s g\n",
			num(*c.BaseCalories), numPtr(c.BaseProtein), numPtr(c.BaseFat), numPtr(c.BaseCarbs))
	} else {
		b.WriteString("- not configured\n")
	}

	b.WriteString("\n[Last 7 days]\n")
	if len(d.weights) == 0 {
		b.WriteString("- Weight: insufficient data\n")
	} else {
		points := make([]string, 0, len(d.weights))
		for i := len(d.weights) - 1; i >= 0; i-- {
			w := d.weights[i]
			points = append(points, fmt.Sprintf("%s: %skg", shortDate(w.Date), num(w.WeightAM)))
		}
		fmt.Fprintf(&b, "- Weight: %s\n", strings.Join(points, ", "))
	}
	if len(d.totals) == 0 {
		b.WriteString("- Average calories: insufficient data\n")
	} else {
		var sum float64
		for _, t := range d.totals {
			sum += t.TotalCalories
		}
		fmt.Fprintf(&b, "- Average calories: %.0f kcal/day\n", sum/float64(len(d.totals)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func mealList(foods []logbook.FoodLog) string {
	if len(foods) == 0 {
		return "none"
	}
	n := min(len(foods), mealsPreview)
	items := make([]string, 0, n)
	for _, f := range foods[:n] {
		items = append(items, fmt.Sprintf("%s %s%s", f.FoodName, num(f.Amount), f.Unit))
	}
	out := strings.Join(items, ", ")
	if len(foods) > mealsPreview {
		out += "..."
	}
	return out
}

// shortDate turns YYYY-MM-DD into MM-DD.
func shortDate(date string) string {
	if t, err := time.Parse(logbook.DateLayout, date); err == nil {
		return t.Format("01-02")
	}
	return date
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func numPtr(v *float64) string {
	if v == nil {
		return "?"
	}
	return num(*v)
}
