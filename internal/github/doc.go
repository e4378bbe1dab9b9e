// Package github is the transport layer for the release API: typed calls
// for reading a release by tag, uploading, renaming and deleting assets,
// replacing the release notes, and probing public download URLs.
//
// Every authenticated request carries a bearer token, the JSON media type
// and a pinned API version header. Each call is retried a bounded number of
// times with a fixed pause when it fails at the network level; HTTP error
// responses are returned as *RemoteError and are never retried, apart from
// one wait on a rate-limit response that says how long to back off.
//
// The client refuses non-HTTPS base URLs.
package github
