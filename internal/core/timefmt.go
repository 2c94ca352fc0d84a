package core

import (
	"fmt"
	"time"
)

// FormatDeliveryTime renders t as "October 18, 2026, 8:05 a.m.".
// The hour keeps its 24h value; only the meridiem follows the clock half.
func FormatDeliveryTime(t time.Time) string {
	meridiem := "a.m."
	if t.Hour() >= 12 {
		meridiem = "p.m."
	}
	return fmt.Sprintf("%s %d, %d, %d:%02d %s", t.Month(), t.Day(), t.Year(), t.Hour(), t.Minute(), meridiem)
}
