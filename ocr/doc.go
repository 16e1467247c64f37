// Package ocr defines the contracts for plugging recognition engines into
// the extraction pipeline, and the adapter that turns raw engine geometry
// into the normalized line list the reconciler consumes. The interfaces are
// intentionally small and transport-agnostic so engines can be backed by
// native libraries or remote APIs without leaking provider-specific
// concerns into callers.
package ocr
