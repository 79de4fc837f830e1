// Package export renders credit usage reports and converts them to PDF
// with headless Chrome.
package export

import (
	"errors"
	"time"
)

// Request identifies the reporting period for one owner.
type Request struct {
	OwnerID string
	From    time.Time
	To      time.Time
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
