// Package streaming provides chunked, flush-aware copying onto HTTP
// responses with prompt client-disconnect detection.
//
// Disconnects surface as ErrClientGone, checked with errors.Is at the
// delivery session boundary. No idle or per-write timers are applied;
// the retrieval execution cap is the pipeline's only time bound.
package streaming
