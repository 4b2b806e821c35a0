// Package period maps calendar dates to reporting buckets. Pure and
// deterministic: no I/O, no clocks beyond the documented bad-date fallback.
package period

import (
	"fmt"
	"time"

	"github.com/faktugo/faktugo-server/internal/domain/entity"
)

// DateLayout is the calendar date format used across the pipeline.
const DateLayout = "2006-01-02"

// Assignment is the result of bucketing a date.
type Assignment struct {
	PeriodType string
	PeriodKey  string
	FolderPath string
}

// Compute buckets dateStr into a monthly or ISO-week period under
// rootFolder. An unparseable date falls back to the current date rather
// than failing; ingestion must never stall on a sloppy extraction.
func Compute(dateStr, mode, rootFolder string) Assignment {
	d, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		d = time.Now()
	}
	return computeAt(d, mode, rootFolder)
}

func computeAt(d time.Time, mode, rootFolder string) Assignment {
	var key string
	periodType := entity.PeriodMonth
	if mode == entity.PeriodWeek {
		periodType = entity.PeriodWeek
		// ISO weeks run Monday to Sunday; the ISO year can differ from the
		// calendar year around January 1st.
		year, week := d.ISOWeek()
		key = fmt.Sprintf("%04d-W%02d", year, week)
	} else {
		key = fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
	}

	return Assignment{
		PeriodType: periodType,
		PeriodKey:  key,
		FolderPath: rootFolder + "/" + key,
	}
}
