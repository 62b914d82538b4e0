package domain

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// SupportedIntervals lists the trailing window sizes, in hours, a historical
// request may ask for.
var SupportedIntervals = []int{2, 6, 12, 24, 48}

// Partition is one (year, month) directory of the record store together
// with the days inside it that a window needs.
type Partition struct {
	Year  string
	Month string
	Days  []string
}

// Dir returns the partition path relative to the data root.
func (p Partition) Dir() string {
	return p.Year + "/" + p.Month
}

// Window is a resolved historical request.
type Window struct {
	IntervalHours int
	Interval      time.Duration
	Reference     string

	// Days holds the calendar days to load, reference day first.
	Days       []string
	Partitions []Partition
}

// Contains reports whether day is one of the window's calendar days.
func (w Window) Contains(day string) bool {
	return slices.Contains(w.Days, day)
}

var intervalToken = regexp.MustCompile(`^[1-9][0-9]*[hH]?$`)

// ParseInterval accepts "24h" or "24" and returns the hour count. Signs,
// leading zeros, and values outside SupportedIntervals yield ErrInvalidInterval.
func ParseInterval(token string) (int, error) {
	if !intervalToken.MatchString(token) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, token)
	}
	hours, err := strconv.Atoi(strings.TrimRight(token, "hH"))
	if err != nil || !slices.Contains(SupportedIntervals, hours) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, token)
	}
	return hours, nil
}

// ResolveWindow determines which calendar days a trailing window of
// intervalHours ending on referenceDate must read, grouped by partition.
// Validation happens before anything else so callers can reject a request
// without touching storage.
func ResolveWindow(intervalHours int, referenceDate string) (Window, error) {
	if !slices.Contains(SupportedIntervals, intervalHours) {
		return Window{}, fmt.Errorf("%w: %dh", ErrInvalidInterval, intervalHours)
	}
	referenceDate = strings.TrimSpace(referenceDate)
	if referenceDate == "" {
		return Window{}, ErrMissingReferenceDate
	}
	ref, err := time.Parse(DateLayout, referenceDate)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidReferenceDate, referenceDate)
	}

	lookback := 0
	switch {
	case intervalHours == 24:
		lookback = 1
	case intervalHours == 48:
		lookback = 2
	}

	days := make([]string, 0, lookback+1)
	for i := 0; i <= lookback; i++ {
		days = append(days, ref.AddDate(0, 0, -i).Format(DateLayout))
	}

	return Window{
		IntervalHours: intervalHours,
		Interval:      time.Duration(intervalHours) * time.Hour,
		Reference:     referenceDate,
		Days:          days,
		Partitions:    groupPartitions(days),
	}, nil
}

// groupPartitions groups days by (year, month) in first-seen order.
func groupPartitions(days []string) []Partition {
	var parts []Partition
	for _, day := range days {
		year, month := day[:4], day[5:7]
		idx := slices.IndexFunc(parts, func(p Partition) bool {
			return p.Year == year && p.Month == month
		})
		if idx < 0 {
			parts = append(parts, Partition{Year: year, Month: month})
			idx = len(parts) - 1
		}
		parts[idx].Days = append(parts[idx].Days, day)
	}
	return parts
}
