// Package report renders validation results as tab-separated report files:
// every source field of the record, the verdict comment for the reported and
// preferred strain names, and a Y/N column saying whether the two comments
// agree. Every field is double-quoted, matching the downstream tooling's
// expectations.
package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/hipc-validation/virus-strain-validator/internal/engine"
	"github.com/hipc-validation/virus-strain-validator/internal/immport"
)

// Field names carrying the strain names in study records.
const (
	ReportedField  = "virusStrainReported"
	PreferredField = "virusStrainPreferred"
)

// Extra column headers appended after the record's own fields.
const (
	commentReportedHeader  = "Comment on virusStrainReported"
	commentPreferredHeader = "Comment on virusStrainPreferred"
	commentsMatchHeader    = "Comments match"
)

// Headers returns the sorted field names of the first record.
func Headers(records []immport.Record) []string {
	if len(records) == 0 {
		return nil
	}
	headers := make([]string, 0, len(records[0]))
	for key := range records[0] {
		headers = append(headers, key)
	}
	sort.Strings(headers)
	return headers
}

// Writer emits one validation report. It classifies each record's
// (reported, preferred) pair through the engine, which memoizes repeated
// pairs.
type Writer struct {
	w      *bufio.Writer
	engine *engine.Engine
}

// NewWriter creates a report Writer over w.
func NewWriter(w io.Writer, e *engine.Engine) *Writer {
	return &Writer{
		w:      bufio.NewWriter(w),
		engine: e,
	}
}

// WriteHeader writes the header row: the record headers followed by the
// two comment columns and the match column.
func (w *Writer) WriteHeader(headers []string) error {
	for _, h := range headers {
		if err := w.writeField(h, true); err != nil {
			return err
		}
	}
	if err := w.writeField(commentReportedHeader, true); err != nil {
		return err
	}
	if err := w.writeField(commentPreferredHeader, true); err != nil {
		return err
	}
	return w.writeField(commentsMatchHeader, false)
}

// WriteRecords validates and writes each record as one row.
func (w *Writer) WriteRecords(headers []string, records []immport.Record) error {
	for _, record := range records {
		if err := w.writeRecord(headers, record); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes buffered output to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// RawWriter emits records as a plain table with no verdict columns. It is
// used to dump cached assay data for inspection.
type RawWriter struct {
	w *bufio.Writer
}

// NewRawWriter creates a RawWriter over w.
func NewRawWriter(w io.Writer) *RawWriter {
	return &RawWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *RawWriter) WriteHeader(headers []string) error {
	for i, h := range headers {
		if err := writeField(w.w, h, i < len(headers)-1); err != nil {
			return err
		}
	}
	return nil
}

// WriteRecords writes each record as one row, one field per header.
func (w *RawWriter) WriteRecords(headers []string, records []immport.Record) error {
	for _, record := range records {
		for i, h := range headers {
			if err := writeField(w.w, record.StringField(h), i < len(headers)-1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes buffered output to the underlying writer.
func (w *RawWriter) Flush() error {
	return w.w.Flush()
}

func (w *Writer) writeRecord(headers []string, record immport.Record) error {
	for _, h := range headers {
		if err := w.writeField(record.StringField(h), true); err != nil {
			return err
		}
	}

	pair, err := w.engine.ClassifyPair(
		record.StringField(ReportedField),
		record.StringField(PreferredField),
	)
	if err != nil {
		return err
	}

	if err := w.writeField(pair.Reported.Comment, true); err != nil {
		return err
	}
	if err := w.writeField(pair.Preferred.Comment, true); err != nil {
		return err
	}
	match := "N"
	if pair.CommentsMatch {
		match = "Y"
	}
	return w.writeField(match, false)
}

// writeField writes one double-quoted field. The last field of a row is
// followed by a newline instead of a tab.
func (w *Writer) writeField(value string, tab bool) error {
	return writeField(w.w, value, tab)
}

func writeField(w *bufio.Writer, value string, tab bool) error {
	sep := "\n"
	if tab {
		sep = "\t"
	}
	_, err := fmt.Fprintf(w, "\"%s\"%s", value, sep)
	return err
}
