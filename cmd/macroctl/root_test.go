package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/suPer8Hu/macrolog/internal/app"
	"github.com/suPer8Hu/macrolog/internal/config"
	"github.com/suPer8Hu/macrolog/internal/logbook"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func openLogbook(t *testing.T, path string) *logbook.Service {
	t.Helper()
	gdb, st, err := app.OpenStore(config.Config{DBDriver: "sqlite", DBDSN: path})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return logbook.NewService(logbook.NewRepo(st))
}

func TestRootHelp(t *testing.T) {
	out, err := run(t, "--help")
	if err != nil {
		t.Fatalf("execute root help: %v", err)
	}
	for _, sub := range []string{"migrate", "import-csv", "targets"} {
		if !strings.Contains(out, sub) {
			t.Fatalf("help should list %s:\n%s", sub, out)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macrolog.sqlite")
	for i := 0; i < 2; i++ {
		if _, err := run(t, "--driver", "sqlite", "--db", path, "migrate"); err != nil {
			t.Fatalf("migrate run %d failed: %v", i+1, err)
		}
	}
}

const sampleCSV = `date,name,amount,unit,kick,kcal,protein,fat,carbs,score,memo
2024-05-01,rice,150,g,,252kcal,3.8,0.5,55.7,60,lunch
2024-05-01,egg,50,g,,76,6.2,5.2,0.2,70,
not-a-date,toast,1,slice,,80,2,1,14,40,
2024-05-02,natto,45,g,,"1,090.0kcal",7.4,4.5,5.4,80,breakfast
`

func TestImportCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "macrolog.sqlite")
	file := filepath.Join(dir, "foods.csv")
	if err := os.WriteFile(file, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--driver", "sqlite", "--db", path, "import-csv", "--wipe=false", file)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	for _, want := range []string{"imported: 3", "skipped: 1", "days with memos: 2", "total calories: 1418 kcal"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	// a second import with --wipe replaces instead of appending
	if _, err := run(t, "--driver", "sqlite", "--db", path, "import-csv", "--wipe", file); err != nil {
		t.Fatalf("import --wipe: %v", err)
	}

	svc := openLogbook(t, path)
	foods, totals, err := svc.FoodsOn(context.Background(), "2024-05-01")
	if err != nil {
		t.Fatalf("foods: %v", err)
	}
	if len(foods) != 2 || totals.Calories != 328 {
		t.Fatalf("foods=%d totals=%+v", len(foods), totals)
	}
	rec, err := svc.Daily(context.Background(), "2024-05-02")
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if rec.Memo == nil || *rec.Memo != "natto: breakfast" {
		t.Fatalf("memo = %v", rec.Memo)
	}
}

func TestImportCSVMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macrolog.sqlite")
	if _, err := run(t, "--driver", "sqlite", "--db", path, "import-csv", filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macrolog.sqlite")
	out, err := run(t, "--driver", "sqlite", "--db", path, "targets", "--lbm", "60")
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	for _, want := range []string{"calories: 2700 kcal", "protein: 180.0 g", "fat: 60.0 g", "carbs: 360.0 g", "bmr: 1666 kcal"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	c, err := openLogbook(t, path).Config(context.Background())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !c.HasTargets() || *c.BaseCalories != 2700 {
		t.Fatalf("targets not stored: %+v", c)
	}
}

func TestTargetsRequiresLBM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macrolog.sqlite")
	if _, err := run(t, "--driver", "sqlite", "--db", path, "targets", "--lbm", "0"); err == nil {
		t.Fatalf("expected error for --lbm 0")
	}
}
