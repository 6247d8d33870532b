// Package services implements the network side of media generation: fetching remote media files.
//
// # Fetcher
//
// [Fetcher] downloads a single url to a local path. [HTTPFetcher] is the production implementation:
// it issues a plain GET without credentials, streams the body to "<path>.part" and renames it into
// place once complete, so a file at path always holds a full response body.
//
// # Retry Policy
//
// A failed download is retried exactly once, and only when [IsNetworkChange] classifies the failure
// as the local network changing under the request. Status failures, timeouts and other transport
// errors are final.
//
// # Network Monitoring
//
// [NetworkMonitor] lets an [HTTPFetcher] abort a request as soon as the network changes instead of
// waiting for the socket to fail. [InterfaceMonitor] polls interface addresses to detect changes.
//
// # Error Handling
//
// Failures wrap [shared.ErrSourceDownloadFailed]; network-change aborts also wrap
// [shared.ErrNetworkChanged].
package services
