// Package retry provides backoff and retry logic for the network calls the
// pipeline makes: resolving the dataset link, downloading the workbook and
// reaching a remote browser.
//
// Basic usage:
//
//	cfg := retry.FromSettings(appCfg.Retry, log)
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return client.Ping(ctx)
//	}, cfg)
//
// Typed errors from pkg/errors decide whether a failure is retried at all
// and which backoff applies. Rate limit responses wait longest, server
// errors wait a moderate time, and auth or not-found failures return at once.
package retry
