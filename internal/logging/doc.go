// Package logging provides opt-in file-based logging with rotation for vab.
// With --debug, structured JSON logs are written to ~/.vab/logs/ and can be
// inspected with `vab logs`.
//
// Without --debug, logging is minimal and goes to stderr only.
package logging
