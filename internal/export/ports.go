// Package export flattens built models into tabular reports and defines
// the port the report backends implement.
package export

import (
	"context"
	"time"
)

// Report is a flattened model snapshot ready for a tabular backend. Rows
// follow Header column for column.
type Report struct {
	Model   string
	Year    int
	BuiltAt time.Time
	Header  []string
	Rows    [][]any
}

// Writer delivers a report to an outbound backend.
type Writer interface {
	WriteReport(ctx context.Context, r Report) error
}
