// Package timewindow defines the UTC time window used across agentcal and the
// normalizer that resolves phrases such as "tomorrow at 3pm", "next Tuesday
// 10:30", "15h" or "in two hours" into one.
//
// Wall-clock values are read in a single configured location and converted
// to UTC. Every timestamp handed to a calendar backend goes through Format,
// which always yields YYYY-MM-DDTHH:MM:SSZ.
//
// Phrases that cannot be resolved fail with a *NormalizationError carrying
// one of ReasonAmbiguous, ReasonUnparseable or ReasonPastInstant.
package timewindow
