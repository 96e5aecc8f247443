// Package desk composes the token ledger into the customer and staff
// operations of the service queue.
//
// TakeToken is the allocator: it returns an owner's live token unchanged or
// creates the next one in sequence, retrying a bounded number of times when
// a concurrent allocation wins the same number. CallNext, MarkDone, and
// ServeBySequence are the dispatcher; each delegates its state change to a
// compare-and-set in the ledger so two workers never receive the same
// token. EnsureCurrentPeriod resolves the active service period on every
// request and applies the retention policy once per period transition; the
// customer and staff operations go through CurrentPeriod, which logs a failed
// retention pass instead of refusing the request.
//
// A Desk holds no token state of its own and is safe for concurrent use.
package desk
