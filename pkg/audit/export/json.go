// Package export provides exporters for audit change records.
package export

import (
	"context"
	"encoding/json"
	"io"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit"
)

// JSONExporter exports change records to JSON format.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{
		Pretty: pretty,
	}
}

// Export writes change records to the provided writer as a JSON array.
// If Pretty is true, the JSON will be indented for readability.
func (e *JSONExporter) Export(ctx context.Context, records []*audit.ChangeRecord, w io.Writer) error {
	if len(records) == 0 {
		_, err := w.Write([]byte("[]"))
		return err
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return audit.NewExportError("json", len(records), err)
	}

	if _, err := w.Write(data); err != nil {
		return audit.NewExportError("json", len(records), err)
	}

	return nil
}
