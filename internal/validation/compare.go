package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/abekarar/openimis-claimslens/internal/settings"
)

// Comparer decides whether an extracted value matches a reference value.
type Comparer struct {
	Tolerance   float64
	DateFormats []string
}

// NewComparer builds a Comparer from module settings.
func NewComparer(s settings.Settings) Comparer {
	return Comparer{
		Tolerance:   s.NumericTolerance,
		DateFormats: s.DateFormats,
	}
}

// Compare compares an extracted value with a reference value. It reports
// false when neither side has a value and the field is not comparable.
//
// Numbers match within the tolerance when either side is numeric. Dates
// match by day when the reference is a time or both sides parse with one
// of the date formats. Everything else compares as folded text.
func (c Comparer) Compare(ocr, ref any) (Comparison, bool) {
	cmp := Comparison{OCRValue: ocr, ClaimValue: ref}

	ocrEmpty, refEmpty := empty(ocr), empty(ref)
	if ocrEmpty && refEmpty {
		return cmp, false
	}
	if ocrEmpty || refEmpty {
		return cmp, true
	}

	if isNumber(ocr) || isNumber(ref) {
		a, aok := toFloat(ocr)
		b, bok := toFloat(ref)
		if aok && bok {
			cmp.Match = math.Abs(a-b) <= c.Tolerance+1e-9
			return cmp, true
		}
	}

	if a, b, ok := c.dates(ocr, ref); ok {
		cmp.Match = a.Year() == b.Year() && a.YearDay() == b.YearDay()
		return cmp, true
	}

	cmp.Match = Normalize(fmt.Sprint(ocr)) == Normalize(fmt.Sprint(ref))
	return cmp, true
}

// Normalize folds s for comparison: NFKC, collapsed whitespace, and
// case folding.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}

func (c Comparer) dates(ocr, ref any) (time.Time, time.Time, bool) {
	if t, ok := ref.(time.Time); ok {
		a, ok := c.parseDate(ocr)
		return a, t, ok
	}
	a, aok := c.parseDate(ocr)
	b, bok := c.parseDate(ref)
	return a, b, aok && bok
}

func (c Comparer) parseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range c.DateFormats {
			if d, err := time.Parse(layout, s); err == nil {
				return d, true
			}
		}
		if d, err := time.Parse(time.RFC3339, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, json.Number:
		return true
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""), 64)
		return f, err == nil
	}
	return 0, false
}

// Score summarizes comparisons. No comparable fields is an error result
// with a zero score.
func Score(comparisons map[string]Comparison, partialThreshold float64) (OverallStatus, float64, int) {
	if len(comparisons) == 0 {
		return StatusError, 0, 0
	}

	matched := 0
	for _, c := range comparisons {
		if c.Match {
			matched++
		}
	}
	discrepancies := len(comparisons) - matched
	score := float64(matched) / float64(len(comparisons))

	switch {
	case discrepancies == 0:
		return StatusMatched, score, 0
	case score < partialThreshold:
		return StatusMismatched, score, discrepancies
	default:
		return StatusPartialMatch, score, discrepancies
	}
}
