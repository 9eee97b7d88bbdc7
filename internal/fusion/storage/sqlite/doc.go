// Package sqlite persists per-frame summaries and ranked cluster reports.
//
// The schema is owned by the embedded migrations under migrations/ and is
// applied on Open. Store implements pipeline.ClusterSink so it can be
// wired directly into a pipeline; frame summaries are recorded separately
// from the frame result.
package sqlite
