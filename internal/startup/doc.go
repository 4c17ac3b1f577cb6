// Package startup handles process initialization: environment-driven
// configuration, external tool verification, build information and
// structured startup/shutdown logging.
package startup
