// Package period resolves service-day boundaries from wall-clock time.
//
// A Calendar maps any instant to the half-open Window
// [start, start + 1 day) that contains it, honouring a configured time zone
// and day-start hour. Every ledger query is scoped by the window's Key, so
// tokens from earlier days fall out of allocation, dispatch, and estimation
// as soon as the clock crosses a boundary.
//
// Production code injects Real(); tests inject Fake() and move time forward
// explicitly with Advance or Set.
package period
