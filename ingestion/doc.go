// Package ingestion loads customer feedback records from CSV into a
// read-only Store.
//
// Loading is all-or-nothing: a malformed row, a missing column, an
// untypeable value or a record that fails validation aborts the load with an
// error wrapping core.ErrIngestion that names the offending line and column.
// Every loaded record has its profile summary derived.
//
// Generate and Write produce deterministic synthetic data sets for demos and
// tests.
package ingestion
