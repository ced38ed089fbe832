// Package reply turns negotiation outcomes and search results into the
// text sent back to the user.
//
// Replies come from a catalog of text/template templates keyed by name.
// Every template can be overridden from configuration; times are rendered
// in the assistant's local time zone.
package reply
