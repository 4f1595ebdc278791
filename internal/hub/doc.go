// Package hub locates model resources on the local filesystem, in the
// content-addressed hub cache, or through the remote hub API.
//
// Files:
//   - repo.go: repository identifiers and revisions
//   - location.go: Location variants and the Locator that picks one
//   - cache.go: read side of the hub cache layout (refs, snapshots, blobs)
//   - blobs.go: write side of the cache (atomic blob writes, digest checks, snapshot links)
//   - api.go: remote API client (metadata, downloads, retries)
//   - modelinfo.go: model info payload
//   - errors.go: sentinel errors
//   - metrics.go: download counters
//
// The cache layout is compatible with other hub clients:
//
//	<root>/models--org--name/refs/<revision>       commit hash
//	<root>/models--org--name/snapshots/<commit>/f  link to ../../blobs/<etag>
//	<root>/models--org--name/blobs/<etag>          file contents
package hub
