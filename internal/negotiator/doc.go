// Package negotiator drives a scheduling request from a time phrase to a
// created calendar event or an explicit abandonment.
//
// A negotiation moves through the session states:
//
//	ResolvingTime -> CheckingAvailability -> AwaitingConfirmation
//	                                      -> AwaitingUserChoice -> CheckingAvailability
//	AwaitingConfirmation -> Confirmed -> Created
//	any waiting state -> Abandoned
//
// Every call returns an Outcome describing where the negotiation stands
// and, on failure, which class of failure occurred. Failures never escape
// as errors: input problems ask the user to clarify, calendar and storage
// failures leave the session where it was so the next message retries the
// same step, and repeated unusable replies end the negotiation after a
// bounded number of attempts.
package negotiator
