// Package reconcile merges dish observations into per-location and global
// dish records. Which fields overwrite, which accumulate and which are only
// defaulted is described by a Policy, so the daily and history uploads share
// one code path. Writes are queued into bounded batches by a Batcher that
// commits synchronously and aborts the run on quota errors.
package reconcile
