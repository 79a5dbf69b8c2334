// Package logging provides file-based structured logging with rotation.
// JSON logs are written to ~/.kioku/logs/kioku.log and mirrored to
// stderr; --debug lowers the level from info to debug.
package logging
