package nutrition

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var errUnparseable = errors.New("no nutrient values found in reply")

// ParseFacts reads a completion reply. The JSON object between the first
// "{" and the last "}" is preferred; otherwise "label: number" lines are
// scanned.
func ParseFacts(text string) (Facts, error) {
	if f, ok := parseJSON(text); ok {
		f.sanitize()
		return f, nil
	}
	if f, ok := parseLines(text); ok {
		f.sanitize()
		return f, nil
	}
	return Facts{}, errUnparseable
}

func parseJSON(text string) (Facts, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Facts{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Facts{}, false
	}

	var f Facts
	for key, slot := range f.fields() {
		*slot = number(raw[key])
	}
	f.Score = int(math.Round(number(raw["score"])))
	return f, true
}

// number follows lenient JS-style coercion: numbers pass, numeric strings
// parse, anything else is 0.
func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return x
	default:
		return 0
	}
}

var lineRe = regexp.MustCompile(`(?i)^[\s\-*•]*([a-z][a-z0-9 _]*?)\s*(?:\([^)]*\))?\s*[:：]\s*(?:about|approx\.?|~)?\s*(\d+(?:\.\d+)?)`)

var lineAliases = map[string]string{
	"calories":        "calories",
	"calorie":         "calories",
	"energy":          "calories",
	"kcal":            "calories",
	"protein":         "protein",
	"fat":             "fat",
	"carbs":           "carbs",
	"carbohydrates":   "carbs",
	"carbohydrate":    "carbs",
	"score":           "score",
	"nutrition score": "score",
	"nutrient score":  "score",
}

func parseLines(text string) (Facts, bool) {
	var f Facts
	slots := f.fields()
	found := false
	for _, line := range strings.Split(text, "\n") {
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := strings.Join(strings.Fields(strings.ToLower(m[1])), " ")
		key, ok := lineAliases[label]
		if !ok {
			key = strings.ReplaceAll(label, " ", "_")
		}
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		if key == "score" {
			f.Score = int(math.Round(v))
			found = true
			continue
		}
		if slot, ok := slots[key]; ok {
			*slot = v
			found = true
		}
	}
	return f, found
}
