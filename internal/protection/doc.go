// Package protection loads the operator-maintained list of branch names
// that are exempt from deletion.
package protection
