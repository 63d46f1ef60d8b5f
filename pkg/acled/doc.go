// Package acled downloads the curated ACLED event workbook.
//
// The curated files page links to the current workbook through an anchor
// with the download-button class. The client scrapes that page with goquery,
// takes the first matching href and streams the target to disk. HTTP
// failures are mapped to typed errors from pkg/errors so that pkg/retry only
// repeats the transient ones:
//
//	client := acled.NewClientFromConfig(cfg, creds, log)
//	res, err := client.Fetch(ctx, cfg.Source.DatasetPath)
package acled
