// Package console implements the interactive menu loop that drives the
// sweep operations. Operator choices are validated against a finite
// dispatch table; session identifiers live in an explicit state value
// threaded through every handler.
package console
