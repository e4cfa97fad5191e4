// Package logging configures structured slog output for docchat.
//
// Logs are JSON lines written to a size-rotated file under ~/.docchat/logs/.
// The terminal belongs to the chat UI, so stderr is only used when explicitly
// requested (--plain with --debug). The same package can read the file back
// for `docchat logs`.
package logging
