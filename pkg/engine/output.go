package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
)

// Format selects how results are written.
type Format string

const (
	// FormatTSV writes the member names and the similarity separated by tabs.
	FormatTSV Format = "tsv"
	// FormatJSONL writes one JSON object per result.
	FormatJSONL Format = "jsonl"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatTSV, FormatJSONL:
		return Format(name), nil
	}
	return "", fmt.Errorf("unknown output format %q (want tsv or jsonl)", name)
}

// Writer writes results in one format. Call Flush when done.
type Writer struct {
	format Format
	buf    *bufio.Writer
}

// NewWriter returns a buffered result writer.
func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{format: format, buf: bufio.NewWriter(w)}
}

// jsonResult is the jsonl shape of a result. A failed comparison has a
// null similarity.
type jsonResult struct {
	Names      []string `json:"names"`
	Similarity *float64 `json:"similarity"`
	Error      string   `json:"error,omitempty"`
}

// Write writes one result.
func (w *Writer) Write(res Result) error {
	switch w.format {
	case FormatJSONL:
		out := jsonResult{Names: res.Names}
		if !math.IsNaN(res.Similarity) && res.Err == nil {
			sim := res.Similarity
			out.Similarity = &sim
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		if _, err := w.buf.Write(data); err != nil {
			return err
		}
		return w.buf.WriteByte('\n')
	default:
		sim := res.Similarity
		if res.Err != nil {
			sim = math.NaN()
		}
		_, err := fmt.Fprintf(w.buf, "%s\t%s\n", strings.Join(res.Names, "\t"), formatSimilarity(sim))
		return err
	}
}

// formatSimilarity renders sim with six decimals. Non-finite values are
// written in lower case, padded to five columns.
func formatSimilarity(sim float64) string {
	switch {
	case math.IsNaN(sim):
		return "  nan"
	case math.IsInf(sim, 1):
		return "  inf"
	case math.IsInf(sim, -1):
		return " -inf"
	}
	return fmt.Sprintf("%5f", sim)
}

// Flush writes any buffered output.
func (w *Writer) Flush() error {
	return w.buf.Flush()
}
