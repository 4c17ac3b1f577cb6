// Package cache provides time-bounded memoization of resolved audio
// metadata. One instance is constructed per process and passed to the
// handlers; there is no ambient state and no persistence across
// restarts.
package cache
