// Package ingestion moves rig metrics files into the store.
//
// Pipeline handles one file: parse the name, wait for the file to settle,
// load and derive trial records, aggregate daily summaries, then write both.
// Files that cannot be used are skipped and reported; store failures are
// returned. Loop drives the pipeline from a startup scan and then from the
// directory watcher, one file at a time.
package ingestion
