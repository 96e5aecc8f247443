// Command turnstile is the operator and customer CLI for the token queue.
//
// Every queue command first tries the daemon's Unix socket and falls back to
// opening the token database directly when no daemon is running, so a desk
// can be operated from a single terminal without starting turnstiled.
//
// Output defaults to rounded tables; --output json or --output yaml emit the
// same DTOs the HTTP API returns.
package main
