// Package exporter writes daily summaries as CSV.
//
// SummaryTable lays rows out with fixed identity columns, one "<col>_avg"
// column per averaged rig column seen in any row, then the totals. Output
// carries a UTF-8 BOM so spreadsheet tools detect the encoding.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(paths, logger)
//	err := w.ExportSummaries("exports/summaries.csv", rows)
//
//	// or straight to an HTTP response
//	err = exporter.WriteSummaries(rw, rows)
package exporter
