package a2a

import "strings"

// ReservedMetadataPrefix marks metadata keys owned by the server. Keys in
// this namespace are stripped from client-visible metadata and are protected
// from being overwritten by agent-supplied task patches.
const ReservedMetadataPrefix = "aion:"

// Well-known metadata keys.
const (
	// MetadataKeyInterruptID carries the interrupt identifier on the
	// input-required status message so clients can resume the right thread.
	MetadataKeyInterruptID = "interruptId"
	// MetadataKeyStreamStatus marks the streaming artifact lifecycle on
	// artifact metadata ("active" while open, "completed" once closed).
	MetadataKeyStreamStatus = "status"
	// MetadataKeyStreamStatusReason qualifies MetadataKeyStreamStatus.
	MetadataKeyStreamStatusReason = "status_reason"
	// MetadataKeyFileIndex records the source position of a file part that
	// was promoted to a standalone artifact.
	MetadataKeyFileIndex = "file_index"
)

// Streaming artifact metadata values.
const (
	// StreamStatusActive marks an open streaming artifact.
	StreamStatusActive = "active"
	// StreamStatusCompleted marks a closed streaming artifact.
	StreamStatusCompleted = "completed"
	// StreamReasonChunk explains an active stream carrying message chunks.
	StreamReasonChunk = "chunk_streaming"
)

// ReservedMetadataKey reports whether the key belongs to the server-owned
// namespace. This is the single place the convention is encoded; call sites
// must not re-implement the prefix check.
func ReservedMetadataKey(key string) bool {
	return strings.HasPrefix(key, ReservedMetadataPrefix)
}

// FilterMetadata returns a copy of md with all reserved-namespace keys
// removed. Returns nil when nothing remains so callers can omit empty
// metadata from wire events.
func FilterMetadata(md map[string]any) map[string]any {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		if ReservedMetadataKey(k) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MergeMetadata shallow-merges patch into current and returns the result.
// Patch keys win except for reserved-namespace keys already present in
// current, which are retained. Neither input map is mutated.
func MergeMetadata(current, patch map[string]any) map[string]any {
	if len(current) == 0 && len(patch) == 0 {
		return current
	}
	out := make(map[string]any, len(current)+len(patch))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range patch {
		if ReservedMetadataKey(k) {
			if _, ok := out[k]; ok {
				continue
			}
		}
		out[k] = v
	}
	return out
}
