// Package session ties retrieval, transcoding and HTTP delivery
// together for a single download request.
//
// A session walks Created -> Retrieving -> Transcoding -> Streaming and
// ends in exactly one of Completed, Failed or Aborted. Whatever the
// terminal state, one teardown pass kills any live child process and
// deletes the session's temp file. Response headers are held back until
// the first transcoded byte exists so early failures can still produce
// a structured error body.
package session
