// Package logging provides slog attribute helpers and logger construction
// for agentcal.
//
// Raw user identifiers and message text are never logged. Use UserHash to
// correlate entries for the same user:
//
//	logger.Info("session started",
//	    logging.UserHash(userID),
//	    logging.State("awaiting_confirmation"))
package logging
