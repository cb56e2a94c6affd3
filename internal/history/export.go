package history

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVHeader is the first row of every export. The actuator column keeps
// the fan_status name and 0/1 values of earlier exports.
var CSVHeader = []string{"timestamp", "unit_id", "temperature", "humidity", "fan_status"}

// WriteCSV streams the samples matching q to w as CSV with a header row.
// Missing values and detached unit ids are written as empty cells.
func (s *Store) WriteCSV(ctx context.Context, q Query, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	err := s.Each(ctx, q, func(sample Sample) error {
		return cw.Write(csvRecord(sample))
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func csvRecord(s Sample) []string {
	unitID := ""
	if s.UnitID != 0 {
		unitID = strconv.FormatInt(s.UnitID, 10)
	}
	return []string{
		s.Timestamp.Format(TimestampLayout),
		unitID,
		formatOptional(s.Temperature),
		formatOptional(s.Humidity),
		actuatorFlag(s.ActuatorOn),
	}
}

func actuatorFlag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
