package logbook

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

type ImportStats struct {
	Imported  int
	Skipped   int
	MemoDays  int
	TotalKcal float64
}

var (
	numberRe = regexp.MustCompile(`[\d.]+`)
	dateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// extractNumber reads the first number in s, ignoring thousands separators:
// "1,344.0kcal" -> 1344, "65pt" -> 65.
func extractNumber(s string) (float64, bool) {
	m := numberRe.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ImportCSV loads food rows with the columns
// date, name, amount, unit, kick, kcal, protein, fat, carbs, score, memo.
// The first line is a header. Rows without a valid date, name, amount or
// calories are skipped. Per-row memos are collected per date as
// "<food>: <memo>" and stored on that date's daily record.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader, wipe bool) (ImportStats, error) {
	var stats ImportStats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		return stats, fmt.Errorf("read header: %w", err)
	}

	if wipe {
		if err := s.repo.WipeLogs(ctx); err != nil {
			return stats, fmt.Errorf("wipe: %w", err)
		}
	}

	memos := map[string][]string{}
	var memoOrder []string

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			stats.Skipped++
			continue
		}
		f, memo, ok := parseRow(rec)
		if !ok {
			stats.Skipped++
			continue
		}
		if err := s.repo.InsertFood(ctx, &f); err != nil {
			return stats, fmt.Errorf("insert %s %s: %w", f.Date, f.FoodName, err)
		}
		stats.Imported++
		stats.TotalKcal += f.Calories
		if memo != "" {
			if _, seen := memos[f.Date]; !seen {
				memoOrder = append(memoOrder, f.Date)
			}
			memos[f.Date] = append(memos[f.Date], f.FoodName+": "+memo)
		}
	}

	for _, date := range memoOrder {
		joined := strings.Join(memos[date], "\n")
		if _, err := s.repo.UpsertDaily(ctx, DailyPatch{Date: date, Memo: &joined}); err != nil {
			return stats, fmt.Errorf("memo %s: %w", date, err)
		}
		stats.MemoDays++
	}
	return stats, nil
}

func parseRow(fields []string) (FoodLog, string, bool) {
	if len(fields) < 11 {
		return FoodLog{}, "", false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	date, name := fields[0], fields[1]
	if !dateRe.MatchString(date) || name == "" {
		return FoodLog{}, "", false
	}
	amount, ok := extractNumber(fields[2])
	if !ok || amount == 0 {
		return FoodLog{}, "", false
	}
	kcal, ok := extractNumber(fields[5])
	if !ok || kcal == 0 {
		return FoodLog{}, "", false
	}
	unit := fields[3]
	if unit == "" {
		unit = "g"
	}
	protein, _ := extractNumber(fields[6])
	fat, _ := extractNumber(fields[7])
	carbs, _ := extractNumber(fields[8])
	score, _ := extractNumber(fields[9])
	if score > 100 {
		score = 100
	}
	return FoodLog{
		Date:     date,
		FoodName: name,
		Amount:   amount,
		Unit:     unit,
		Calories: kcal,
		Protein:  protein,
		Fat:      fat,
		Carbs:    carbs,
		Score:    int(score),
	}, fields[10], true
}
