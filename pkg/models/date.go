package models

import (
	"fmt"
	"time"
)

// RunDateLayout is the YYYYMMDD form used for file names and object keys
const RunDateLayout = "20060102"

// RunDate formats t as a run date
func RunDate(t time.Time) string {
	return t.Format(RunDateLayout)
}

// ParseRunDate validates a YYYYMMDD run date. An empty string yields the
// current local date.
func ParseRunDate(s string, now time.Time) (string, error) {
	if s == "" {
		return RunDate(now), nil
	}
	t, err := time.Parse(RunDateLayout, s)
	if err != nil || t.Format(RunDateLayout) != s {
		return "", fmt.Errorf("invalid run date %q: want YYYYMMDD", s)
	}
	return s, nil
}

// DatasetFile is the file name of the dataset for a run date
func DatasetFile(date string) string {
	return date + ".csv"
}
