// Package handlers provides the HTTP request handlers for the audio
// bridge API.
//
// It includes handlers for:
//   - The service descriptor and build/version info
//   - Audio metadata resolution with TTL caching
//   - Streamed audio download delivery
//   - Health checks and cache administration
//
// All failures inside a request are converted to the API error taxonomy
// in exactly one place (classifyError).
package handlers
