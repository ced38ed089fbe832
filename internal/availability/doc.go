// Package availability answers whether a window is free on the calendar
// and, when it is not, proposes nearby free windows of the same length.
//
// Alternative generation is deterministic for a fixed configuration and
// calendar: probes start at the end of the conflicting events, advance in
// fixed steps, and cover the rest of the requested day followed by a
// bounded number of business days inside working hours. A single
// free-busy query covers the whole search horizon.
package availability
