// Package bitbucket implements a thin REST client for Bitbucket Server.
//
// It covers the project, repository, and branch endpoints the sweep
// workflows consume: metadata lookups, exhaustive branch listings, and
// per-branch deletion through the branch-utils resource. Authentication
// uses HTTP basic credentials or a personal access token.
package bitbucket
