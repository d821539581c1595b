package monitor

import (
	"math"
	"strconv"
	"time"
)

const day = 24 * time.Hour

// Percentage is part/total*100 rounded to one decimal. A zero total yields 0.
func Percentage(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

// WholeDays floors d to whole days.
func WholeDays(d time.Duration) int64 {
	return int64(math.Floor(float64(d) / float64(day)))
}

// AverageDays averages the durations in days, rounded to one decimal.
func AverageDays(ds []time.Duration) (float64, bool) {
	if len(ds) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	avg := float64(total) / float64(len(ds)) / float64(day)
	return math.Round(avg*10) / 10, true
}

// reaches reports part/total >= ratio, tolerating float noise at the boundary.
func reaches(part, total int64, ratio float64) bool {
	if total <= 0 {
		return false
	}
	return float64(part)/float64(total) >= ratio-1e-9
}

func exceeds(part, total int64, ratio float64) bool {
	if total <= 0 {
		return false
	}
	return float64(part)/float64(total) > ratio+1e-9
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func ago(now time.Time, d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
