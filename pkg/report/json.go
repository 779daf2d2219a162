package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/NAMEAMITSONI/authopsy/pkg/authz"
)

// WriteJSON writes the report in its stable wire shape.
func WriteJSON(w io.Writer, r *authz.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// SaveJSON writes the report to a file, creating or truncating it.
func SaveJSON(path string, r *authz.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()
	if err := WriteJSON(f, r); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// LoadJSON reads a previously exported report back, for the report command
// and for diffing runs.
func LoadJSON(path string) (*authz.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report file: %w", err)
	}
	var r authz.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}

// WriteFuzzJSON writes a fuzz report in its wire shape.
func WriteFuzzJSON(w io.Writer, r *authz.FuzzReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// SaveFuzzJSON writes a fuzz report to a file.
func SaveFuzzJSON(path string, r *authz.FuzzReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()
	if err := WriteFuzzJSON(f, r); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
