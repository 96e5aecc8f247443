// Package logs reads the daemon log for `turnstile logs`.
//
// Tail returns the last lines of a file together with the byte offset just
// past them; passing that offset back resumes where the previous read ended,
// which is how follow mode polls for new lines with bounded memory.
// A Match filter narrows output to lines mentioning a token id, owner, or
// worker.
package logs
