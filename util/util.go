package util

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// FloatTolerance relative tolerance used when reconciling credit amounts.
const FloatTolerance = 1e-6

func GetUUID() string {
	return uuid.New().String()
}

func IsValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// SafeDivide returns numerator/denominator and 0 when the denominator is 0.
func SafeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// IsFinite is false for NaN and +/-Inf.
func IsFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

// AlmostEqualRelative compares a and b within FloatTolerance relative to the larger magnitude.
func AlmostEqualRelative(a, b float64) bool {
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		return diff <= FloatTolerance
	}
	return diff <= FloatTolerance*scale
}

func StringValueIn(value string, list []string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// CleanSplitByDelimiter splits by delimiter and drops empty, whitespace only values.
func CleanSplitByDelimiter(str string, del string) []string {
	split := strings.Split(str, del)
	cleanSplit := make([]string, 0, len(split))
	for _, s := range split {
		if s = strings.TrimSpace(s); s != "" {
			cleanSplit = append(cleanSplit, s)
		}
	}
	return cleanSplit
}

// UniqueStrings keeps first occurrence order.
func UniqueStrings(list []string) []string {
	seen := make(map[string]bool, len(list))
	unique := make([]string, 0, len(list))
	for _, s := range list {
		if seen[s] {
			continue
		}
		seen[s] = true
		unique = append(unique, s)
	}
	return unique
}
