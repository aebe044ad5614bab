// Package fetcher downloads provisioning resources over HTTP.
//
// Fetch is idempotent: an existing cache file is treated as satisfied and is
// not re-verified. Transfers report throttled progress events carrying the
// byte count and instantaneous throughput.
package fetcher
