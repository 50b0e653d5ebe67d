// Package dataprocessing turns rig metrics files into trial records and
// daily summaries.
//
// # Architecture
//
// The package is organized into four steps, each usable on its own:
//
//  1. FilenameParser: reads subject, stage, session and date from the file name
//  2. Loader: reads CSV, XLS or XLSX into a Table, sniffing CSV encodings
//  3. Deriver: classifies each row into a stage-specific outcome
//  4. Aggregate: folds trial records into one DailySummary per (date, subject, stage)
//
// # Usage
//
//	meta, err := dataprocessing.NewFilenameParser(1, 19).Parse(path)
//	if err != nil {
//	    return err
//	}
//	table, err := dataprocessing.NewLoader(10000, logger).Load(ctx, path)
//	if err != nil {
//	    return err
//	}
//	records, err := dataprocessing.NewDeriver(cutoff, logger).Derive(ctx, meta, table)
//	if err != nil {
//	    return err
//	}
//	summaries := dataprocessing.Aggregate(records)
//
// # Data Flow
//
//	metrics file → Loader → Table → Deriver → []TrialRecord → Aggregate → []DailySummary
//
// # Error Handling
//
// Failures are *errors.AppError values of type PARSING. Callers skip the
// file and continue; use errors.Is with ErrInvalidFilename,
// ErrSubjectOutOfRange, ErrUnsupportedFormat or ErrSchemaIncomplete to tell
// the causes apart. Rows dated before the cutoff are dropped silently.
package dataprocessing
