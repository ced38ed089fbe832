// Package google provides OAuth2 configuration and on-disk token storage
// for the Google Calendar API.
//
// Tokens are obtained once with `agentcal auth` and refreshed
// automatically afterwards; refreshed tokens are written back to disk.
package google
