// Package ingest runs the jobs behind each command: the daily menu upload,
// the history backfill, the retail location upload, the store reset and the
// read-only menu dump. Jobs walk their locations one at a time, skip
// locations whose fetch fails and stop early only when the store reports a
// quota error or the context is canceled.
package ingest
