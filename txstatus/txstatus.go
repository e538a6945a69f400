/*
Package txstatus holds the status table of a bridge transaction.

Every writer of a transaction status (ingest flow, relayer, HTTP admin
endpoint) asks this table before persisting a change and rejects the
write on false. The table is the single authority. There is no
normalization in front of it: an input that is not exactly one of the
five lower case statuses is invalid, never an error.
*/
package txstatus

// The five statuses a bridge transaction can take.
const (
	StatusPending    = "pending"    // recorded, nothing done yet
	StatusProcessing = "processing" // a service is working on it
	StatusConfirmed  = "confirmed"  // payout submitted, awaiting finalization
	StatusProcessed  = "processed"  // terminal success
	StatusFailed     = "failed"     // latest attempt failed, retry possible
)

// Allowed moves. A status never moves to itself. failed is listed per
// row on purpose, it is not an implicit fallback. confirmed is not
// re-enterable after failed, the retry path goes through pending or
// processing again.
var validTransitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusConfirmed, StatusFailed},
	StatusProcessing: {StatusProcessed, StatusFailed},
	StatusConfirmed:  {StatusProcessed, StatusFailed},
	StatusFailed:     {StatusPending, StatusProcessing},
	StatusProcessed:  {StatusFailed},
}

// IsValidStatusTransition reports whether from -> to is an allowed
// move. Inputs are matched exactly.
func IsValidStatusTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// GetValidTransitions lists the statuses reachable from the given one.
// The result is a fresh copy, callers may keep or modify it. Unknown
// input yields nil.
func GetValidTransitions(from string) []string {
	targets, ok := validTransitions[from]
	if !ok {
		return nil
	}
	out := make([]string, len(targets))
	copy(out, targets)
	return out
}

// IsKnownStatus reports whether s is one of the five statuses.
func IsKnownStatus(s string) bool {
	_, ok := validTransitions[s]
	return ok
}
