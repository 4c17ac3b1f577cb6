// Package fetch supervises the external fetch tool (yt-dlp). It covers
// metadata probes, streaming retrieval to a pipe, and file-mediated
// retrieval, with an execution timeout, an output size cap, bounded
// diagnostic capture and idempotent kill.
//
// Tool arguments are always built as discrete argv elements; media
// identifiers are never interpolated into a shell command line.
package fetch
