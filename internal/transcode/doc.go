// Package transcode manages the external transcoder (FFmpeg) process
// that normalizes retrieved audio to stereo 128 kbps AAC in an MPEG-4
// container.
//
// It supports:
//   - Transcoding from a completed temp file
//   - Transcoding from a live byte stream, concurrently with retrieval
//   - Best-effort progress reporting parsed from -progress output
//   - Exactly-once terminal result via Wait, idempotent Kill
//
// FFmpeg must be installed and resolvable at the configured path.
package transcode
