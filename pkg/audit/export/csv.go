package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit"
)

// CSVExporter exports change records to CSV format.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{
		IncludeHeader: includeHeader,
	}
}

// Export writes change records to the provided writer in CSV format.
func (e *CSVExporter) Export(ctx context.Context, records []*audit.ChangeRecord, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	for _, record := range records {
		if err := writer.Write(recordToRow(record)); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError("csv", len(records), err)
	}

	return nil
}

// headerRow returns the CSV header row.
func headerRow() []string {
	return []string{
		"id", "version", "timestamp",
		"key_id", "old_weight", "new_weight",
		"operation", "source", "operator", "reason", "batch_id", "metadata",
	}
}

// recordToRow flattens a change record into a CSV row. Metadata is
// encoded as a JSON object in its cell.
func recordToRow(record *audit.ChangeRecord) []string {
	var metadata string
	if len(record.Metadata) > 0 {
		if encoded, err := json.Marshal(record.Metadata); err == nil {
			metadata = string(encoded)
		}
	}
	return []string{
		record.ID,
		strconv.FormatInt(record.Version, 10),
		record.Timestamp.Format(time.RFC3339Nano),
		record.KeyID,
		strconv.Itoa(record.OldWeight),
		strconv.Itoa(record.NewWeight),
		string(record.Operation),
		string(record.Source),
		record.Operator,
		record.Reason,
		record.BatchID,
		metadata,
	}
}
