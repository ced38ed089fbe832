// Package calendar defines the Store the negotiation engine reads free-busy
// data from and writes confirmed events to, with a Google Calendar
// implementation and an in-memory one.
//
// Every timestamp sent to a backend is rendered with timewindow.Format
// (YYYY-MM-DDTHH:MM:SSZ). The Google API rejects some offset spellings in
// timeMin/timeMax, so no other layout is ever used on the wire.
package calendar
