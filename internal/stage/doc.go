// Package stage caches the output of each audit step under a stage name.
//
// A Store holds raw artifacts for one organization. Resolve loads a stage
// when its snapshot exists and recomputes it otherwise. Presence alone
// decides: a snapshot is never checked against the current site, so a stale
// stage is refreshed only when the caller forces it.
//
// Two backends are provided. DirStore writes files below
// <root>/<organization>/ and S3Store writes objects below
// <organization>/ in a bucket.
package stage
