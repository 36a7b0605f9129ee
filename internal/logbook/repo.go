package logbook

import (
	"context"
	"errors"
	"time"

	"github.com/suPer8Hu/macrolog/internal/store"
)

const configID = 1

type Repo struct {
	st  store.Store
	now func() time.Time
}

func NewRepo(st store.Store) *Repo {
	return &Repo{st: st, now: func() time.Time { return time.Now().UTC() }}
}

// WithStore returns a repo bound to tx, for use inside Store.Tx.
func (r *Repo) WithStore(tx store.Store) *Repo {
	return &Repo{st: tx, now: r.now}
}

func (r *Repo) Store() store.Store { return r.st }

// ---- daily records ----

func (r *Repo) GetDaily(ctx context.Context, date string) (*DailyRecord, error) {
	var rec DailyRecord
	if err := r.st.Get(ctx, &rec, "SELECT * FROM daily_records WHERE date = ?", date); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecentDaily returns the latest n records, oldest first.
func (r *Repo) RecentDaily(ctx context.Context, n int) ([]DailyRecord, error) {
	var rows []DailyRecord
	if err := r.st.Select(ctx, &rows, "SELECT * FROM daily_records ORDER BY date DESC LIMIT ?", n); err != nil {
		return nil, err
	}
	reverse(rows)
	return rows, nil
}

// UpsertDaily applies p to the record for p.Date, creating it if needed.
// Nil fields in p keep their stored values.
func (r *Repo) UpsertDaily(ctx context.Context, p DailyPatch) (*DailyRecord, error) {
	var out *DailyRecord
	err := r.st.Tx(ctx, func(tx store.Store) error {
		txr := r.WithStore(tx)
		now := r.now()
		existing, err := txr.GetDaily(ctx, p.Date)
		switch {
		case errors.Is(err, store.ErrNotFound):
			rec := DailyRecord{Date: p.Date, CreatedAt: now, UpdatedAt: now}
			p.apply(&rec)
			res, err := tx.Exec(ctx,
				`INSERT INTO daily_records (date, weight_am, weight_pm, memo, sleep_hours, cardio_minutes, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.Date, rec.WeightAM, rec.WeightPM, rec.Memo, rec.SleepHours, rec.CardioMinutes, rec.CreatedAt, rec.UpdatedAt)
			if err != nil {
				return err
			}
			rec.ID = res.LastInsertID
			out = &rec
			return nil
		case err != nil:
			return err
		}
		p.apply(existing)
		existing.UpdatedAt = now
		if _, err := tx.Exec(ctx,
			`UPDATE daily_records SET weight_am = ?, weight_pm = ?, memo = ?, sleep_hours = ?, cardio_minutes = ?, updated_at = ?
			 WHERE id = ?`,
			existing.WeightAM, existing.WeightPM, existing.Memo, existing.SleepHours, existing.CardioMinutes, existing.UpdatedAt, existing.ID); err != nil {
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WeightsBetween returns up to limit morning weights in [from, to], newest first.
func (r *Repo) WeightsBetween(ctx context.Context, from, to string, limit int) ([]WeightPoint, error) {
	var rows []WeightPoint
	err := r.st.Select(ctx, &rows,
		`SELECT date, weight_am FROM daily_records
		 WHERE date >= ? AND date <= ? AND weight_am IS NOT NULL
		 ORDER BY date DESC LIMIT ?`, from, to, limit)
	return rows, err
}

// ---- food logs ----

// ListFoods returns one date's entries, newest first.
func (r *Repo) ListFoods(ctx context.Context, date string) ([]FoodLog, error) {
	var rows []FoodLog
	err := r.st.Select(ctx, &rows, "SELECT * FROM food_logs WHERE date = ? ORDER BY created_at DESC, id DESC", date)
	return rows, err
}

func (r *Repo) GetFood(ctx context.Context, id int64) (*FoodLog, error) {
	var f FoodLog
	if err := r.st.Get(ctx, &f, "SELECT * FROM food_logs WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &f, nil
}

// InsertFood stores f and fills in its id and created_at.
func (r *Repo) InsertFood(ctx context.Context, f *FoodLog) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = r.now()
	}
	args := []any{f.Date, f.FoodName, f.Amount, f.Unit, f.Calories, f.Protein, f.Fat, f.Carbs, f.Score}
	args = append(args, f.Micronutrients.values()...)
	args = append(args, f.CreatedAt)
	res, err := r.st.Exec(ctx,
		`INSERT INTO food_logs (date, food_name, amount, unit, calories, protein, fat, carbs, score, `+microColumns+`, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...)
	if err != nil {
		return err
	}
	f.ID = res.LastInsertID
	return nil
}

// DeleteFood reports whether a row was removed.
func (r *Repo) DeleteFood(ctx context.Context, id int64) (bool, error) {
	res, err := r.st.Exec(ctx, "DELETE FROM food_logs WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}

// DuplicateFood copies entry id as a new row. An empty date keeps the source date.
func (r *Repo) DuplicateFood(ctx context.Context, id int64, date string) (*FoodLog, error) {
	var out *FoodLog
	err := r.st.Tx(ctx, func(tx store.Store) error {
		txr := r.WithStore(tx)
		src, err := txr.GetFood(ctx, id)
		if err != nil {
			return err
		}
		cp := *src
		cp.ID = 0
		cp.CreatedAt = time.Time{}
		if date != "" {
			cp.Date = date
		}
		if err := txr.InsertFood(ctx, &cp); err != nil {
			return err
		}
		out = &cp
		return nil
	})
	return out, err
}

// DailyTotals returns per-date sums for the latest n logged dates, oldest first.
func (r *Repo) DailyTotals(ctx context.Context, n int) ([]DayTotal, error) {
	var rows []DayTotal
	err := r.st.Select(ctx, &rows,
		`SELECT date, SUM(calories) AS total_calories, SUM(protein) AS total_protein,
		        SUM(fat) AS total_fat, SUM(carbs) AS total_carbs
		 FROM food_logs GROUP BY date ORDER BY date DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	reverse(rows)
	return rows, nil
}

// DailyTotalsBetween returns up to limit per-date sums in [from, to], newest first.
func (r *Repo) DailyTotalsBetween(ctx context.Context, from, to string, limit int) ([]DayTotal, error) {
	var rows []DayTotal
	err := r.st.Select(ctx, &rows,
		`SELECT date, SUM(calories) AS total_calories, SUM(protein) AS total_protein,
		        SUM(fat) AS total_fat, SUM(carbs) AS total_carbs
		 FROM food_logs WHERE date >= ? AND date <= ?
		 GROUP BY date ORDER BY date DESC LIMIT ?`, from, to, limit)
	return rows, err
}

// SuggestNames returns up to 10 distinct food names, most recently used first.
func (r *Repo) SuggestNames(ctx context.Context, q string) ([]string, error) {
	var names []string
	var err error
	if q == "" {
		err = r.st.Select(ctx, &names,
			`SELECT food_name FROM food_logs GROUP BY food_name
			 ORDER BY MAX(created_at) DESC, COUNT(*) DESC, food_name ASC LIMIT 10`)
	} else {
		err = r.st.Select(ctx, &names,
			`SELECT food_name FROM food_logs WHERE food_name LIKE ? GROUP BY food_name
			 ORDER BY MAX(created_at) DESC, COUNT(*) DESC, food_name ASC LIMIT 10`, "%"+q+"%")
	}
	return names, err
}

// WipeLogs removes every food entry and daily record.
func (r *Repo) WipeLogs(ctx context.Context) error {
	return r.st.Tx(ctx, func(tx store.Store) error {
		if _, err := tx.Exec(ctx, "DELETE FROM food_logs"); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "DELETE FROM daily_records")
		return err
	})
}

// ---- user config ----

func (r *Repo) GetConfig(ctx context.Context) (*UserConfig, error) {
	var c UserConfig
	if err := r.st.Get(ctx, &c, "SELECT * FROM user_config WHERE id = ?", configID); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveConfig reads the singleton, lets mutate change it and writes it back.
func (r *Repo) SaveConfig(ctx context.Context, mutate func(c *UserConfig) error) (*UserConfig, error) {
	var out *UserConfig
	err := r.st.Tx(ctx, func(tx store.Store) error {
		txr := r.WithStore(tx)
		c, err := txr.GetConfig(ctx)
		insert := false
		switch {
		case errors.Is(err, store.ErrNotFound):
			c = &UserConfig{ID: configID}
			insert = true
		case err != nil:
			return err
		}
		if err := mutate(c); err != nil {
			return err
		}
		c.UpdatedAt = r.now()
		args := []any{c.LeanBodyMass, c.HeightCM, c.WeightKG, c.Age, c.BaseCalories, c.BaseProtein, c.BaseFat, c.BaseCarbs, c.BMR, c.UpdatedAt, configID}
		if insert {
			_, err = tx.Exec(ctx,
				`INSERT INTO user_config (lean_body_mass, height_cm, weight_kg, age, base_calories, base_protein, base_fat, base_carbs, bmr, updated_at, id)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE user_config SET lean_body_mass = ?, height_cm = ?, weight_kg = ?, age = ?, base_calories = ?,
				        base_protein = ?, base_fat = ?, base_carbs = ?, bmr = ?, updated_at = ?
				 WHERE id = ?`, args...)
		}
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
