// Package mediainfo models the encodings reported for a remote media
// item and implements the audio format selection policy.
//
// A Catalog is built once from fetch-tool metadata and never mutated.
// Selection is deterministic: the largest audio-only format wins, exact
// sizes beat approximate ones, and ties keep the first-seen format.
package mediainfo
