// Package apperr defines the error taxonomy shared across the exporter.
package apperr

import "errors"

var (
	// ErrNotFound reports a page or block id with no record in the store.
	ErrNotFound = errors.New("not found")

	// ErrCycleDetected reports a reference or embed chain that loops back
	// on itself. Recovered with a placeholder.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrMissingTarget reports a reference or embed whose target does not
	// exist in the graph. Recovered with a placeholder.
	ErrMissingTarget = errors.New("missing reference target")

	// ErrMaxEmbedDepth reports an embed expansion that exceeded the
	// configured depth limit. Recovered with a truncation marker.
	ErrMaxEmbedDepth = errors.New("max embed depth exceeded")

	// ErrMalformedBlock reports a block record that cannot be traversed
	// (missing id, parent chain cycle). The block is excluded.
	ErrMalformedBlock = errors.New("malformed block record")

	// ErrScriptFailed reports a script hook failure. The affected page is
	// excluded; the run continues.
	ErrScriptFailed = errors.New("script execution failed")

	// ErrCacheUnavailable reports an unreachable cache store. Fatal for
	// the whole run.
	ErrCacheUnavailable = errors.New("cache store unavailable")
)
