// Package sweep provides the branch maintenance operations behind the
// interactive console: project and repository lookups, exhaustive branch
// listings, dated snapshot files, and best-effort deletion of branches
// that are neither protected nor the repository default.
package sweep
