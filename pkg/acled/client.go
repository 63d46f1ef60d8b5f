package acled

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"conflictmap/pkg/config"
	errs "conflictmap/pkg/errors"
	"conflictmap/pkg/logger"
	"conflictmap/pkg/retry"
	"conflictmap/pkg/storage"
)

// Credentials are the ACLED API key and registered email. Both are optional;
// the curated files page works without them.
type Credentials struct {
	Key   string
	Email string
}

func (c Credentials) empty() bool {
	return c.Key == "" || c.Email == ""
}

// Options configures a Client
type Options struct {
	PageURL      string
	LinkSelector string
	UserAgent    string
	Timeout      time.Duration
	Credentials  Credentials
	Retry        *retry.Config
	Logger       logger.Logger
}

// FetchResult describes a completed dataset download
type FetchResult struct {
	PageURL     string
	DownloadURL string
	Path        string
	Bytes       int64
}

// Client resolves and downloads the curated ACLED workbook
type Client struct {
	http     *resty.Client
	pageURL  string
	selector string
	creds    Credentials
	retry    *retry.Config
	logger   logger.Logger
}

// NewClient creates a new ACLED client
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	rc := opts.Retry
	if rc == nil {
		rc = retry.DefaultConfig()
		rc.Logger = log
	}
	selector := opts.LinkSelector
	if selector == "" {
		selector = "a.download-button"
	}

	client := resty.New()
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	c := &Client{
		http:     client,
		pageURL:  opts.PageURL,
		selector: selector,
		creds:    opts.Credentials,
		retry:    rc,
		logger:   log.WithField("component", "acled"),
	}
	client.OnAfterResponse(c.logResponse)
	return c
}

// NewClientFromConfig builds a client from the source and retry sections
func NewClientFromConfig(cfg *config.Config, creds Credentials, log logger.Logger) *Client {
	return NewClient(Options{
		PageURL:      cfg.Source.PageURL,
		LinkSelector: cfg.Source.LinkSelector,
		UserAgent:    cfg.Source.UserAgent,
		Timeout:      cfg.Source.Timeout,
		Credentials:  creds,
		Retry:        retry.FromSettings(cfg.Retry, log),
		Logger:       log,
	})
}

func (c *Client) logResponse(_ *resty.Client, res *resty.Response) error {
	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":      res.Request.Method,
		"url":         res.Request.URL,
		"status_code": res.StatusCode(),
		"duration_ms": res.Time().Milliseconds(),
	})
	return nil
}

// ResolveDownloadLink fetches the curated files page and returns the absolute
// URL of the first link matching the selector
func (c *Client) ResolveDownloadLink(ctx context.Context) (string, error) {
	if c.pageURL == "" {
		return "", errs.New(errs.ErrorTypeNotFound, "no dataset page URL configured")
	}
	return retry.DoWithResult(ctx, c.resolveOnce, c.retry)
}

func (c *Client) resolveOnce(ctx context.Context) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(c.pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errs.Wrap(errs.ErrorTypeNetwork, "failed to fetch dataset page", err)
	}
	if res.IsError() {
		return "", errs.FromStatus(res.StatusCode(), fmt.Sprintf("dataset page returned %s", res.Status()))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeParsing, "failed to parse dataset page", err)
	}

	href := strings.TrimSpace(doc.Find(c.selector).First().AttrOr("href", ""))
	if href == "" {
		return "", errs.New(errs.ErrorTypeParsing, fmt.Sprintf("no %q link found on %s", c.selector, c.pageURL))
	}

	return resolveReference(c.pageURL, href)
}

func resolveReference(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeParsing, "invalid page URL", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeParsing, "invalid download link", err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// Download streams the file at rawURL into dest and returns the byte count.
// dest is only replaced once the whole body has arrived.
func (c *Client) Download(ctx context.Context, rawURL, dest string) (int64, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (int64, error) {
		return c.downloadOnce(ctx, rawURL, dest)
	}, c.retry)
}

func (c *Client) downloadOnce(ctx context.Context, rawURL, dest string) (int64, error) {
	req := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	if !c.creds.empty() {
		req.SetQueryParams(map[string]string{
			"key":   c.creds.Key,
			"email": c.creds.Email,
		})
	}

	started := time.Now()
	res, err := req.Get(rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, errs.Wrap(errs.ErrorTypeNetwork, "failed to download dataset", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.IsError() {
		return 0, errs.FromStatus(res.StatusCode(), fmt.Sprintf("dataset download returned %s", res.Status()))
	}

	n, err := storage.WriteFileAtomic(dest, body)
	if err != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, errs.Wrap(errs.ErrorTypeNetwork, "dataset transfer interrupted", err)
	}

	c.logger.InfoWithFields("Dataset downloaded", map[string]interface{}{
		"path":     dest,
		"bytes":    n,
		"duration": time.Since(started),
	})
	return n, nil
}

// Fetch resolves the download link and saves the workbook to dest
func (c *Client) Fetch(ctx context.Context, dest string) (*FetchResult, error) {
	link, err := c.ResolveDownloadLink(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve download link: %w", err)
	}
	c.logger.WithField("url", link).Info("Resolved dataset link")

	n, err := c.Download(ctx, link, dest)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", link, err)
	}

	return &FetchResult{
		PageURL:     c.pageURL,
		DownloadURL: link,
		Path:        dest,
		Bytes:       n,
	}, nil
}
