// Package session keeps one negotiation record per user between messages.
//
// A Manager owns the records and applies expiry: a session idle for longer
// than the configured TTL is discarded on the next lookup and by a
// periodic sweep, and the caller sees it as absent. Records live in a
// Store; memory, SQLite and Valkey backends are provided.
//
// Manager.Lock serializes message handling per user so two messages from
// the same user never advance one session concurrently.
package session
