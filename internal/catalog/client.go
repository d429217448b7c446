package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/iis-server-builder/internal/logger"
	"github.com/oshokin/iis-server-builder/internal/verify"
)

var (
	// ErrCatalogUnavailable is returned when the listing cannot be fetched or parsed.
	ErrCatalogUnavailable = errors.New("catalog is unavailable")
	// ErrEmptyCatalog is returned when the listing contains no files.
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrNoMatchingEntry is returned when no entry passes the release filter.
	ErrNoMatchingEntry = errors.New("no matching release in catalog")
	// ErrLinkResolution is returned when the host yields no usable download link.
	ErrLinkResolution = errors.New("download link resolution failed")
	// ErrDownloadFailed is returned on a transport error while streaming the archive.
	ErrDownloadFailed = errors.New("download failed")

	// errTooManyRedirects limits download redirects to a single hop.
	errTooManyRedirects = errors.New("too many redirects")
)

const (
	// DefaultBaseURL is the public resources endpoint of the file host.
	DefaultBaseURL = "https://cloud-api.yandex.net/v1/disk/public/resources"

	// listingLimit caps the number of entries requested from the host.
	listingLimit = 200
)

// Entry is one file's metadata as reported by the catalog.
// Immutable once fetched.
type Entry struct {
	// Name is the file name as shown in the public folder.
	Name string `json:"file_name"`
	// RemotePath is the opaque locator used to request a download link.
	RemotePath string `json:"file_path"`
	// ModifiedAt is the last modification timestamp reported by the host.
	ModifiedAt time.Time `json:"modified_at"`
	// SizeBytes is the file size reported by the host.
	SizeBytes int64 `json:"size_bytes"`
	// Checksum is the hex MD5 digest reported by the host, possibly empty.
	Checksum string `json:"checksum,omitempty"`
	// Version is the release version extracted from Name.
	Version string `json:"version"`
}

// VersionProbe is the derived answer to "is an update available".
type VersionProbe struct {
	// HasUpdate reports whether the newest release differs from the current version.
	HasUpdate bool `json:"has_update"`
	// LatestVersion is the version extracted from the newest matching entry.
	LatestVersion string `json:"latest_version"`
	// Source is the catalog entry the probe is based on.
	Source Entry `json:"source"`
}

// Client talks to the public file host over its JSON API.
type Client struct {
	// baseURL is the API endpoint for public resources.
	baseURL string
	// folderURL is the public key identifying the folder to list.
	folderURL string
	// httpClient performs all requests; it follows at most one redirect.
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the timeout for all catalog requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a catalog client for the provided public folder URL.
func NewClient(folderURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		folderURL: folderURL,
		httpClient: &http.Client{
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > 1 {
					return errTooManyRedirects
				}

				return nil
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// listing mirrors the host's "list public folder contents" response.
type listing struct {
	Embedded struct {
		Items []listingItem `json:"items"`
	} `json:"_embedded"`
}

// listingItem is one row of the public folder listing.
type listingItem struct {
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
	MD5      string    `json:"md5"`
}

// downloadLink mirrors the host's "resolve download link" response.
type downloadLink struct {
	Href string `json:"href"`
}

// ListEntries fetches the public listing and returns its file entries.
func (c *Client) ListEntries(ctx context.Context) ([]Entry, error) {
	query := url.Values{}
	query.Set("public_key", c.folderURL)
	query.Set("limit", fmt.Sprint(listingLimit))

	var parsed listing
	if err := c.getJSON(ctx, c.baseURL+"?"+query.Encode(), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	entries := make([]Entry, 0, len(parsed.Embedded.Items))

	for _, item := range parsed.Embedded.Items {
		if item.Type != "file" {
			continue
		}

		entries = append(entries, Entry{
			Name:       item.Name,
			RemotePath: item.Path,
			ModifiedAt: item.Modified,
			SizeBytes:  item.Size,
			Checksum:   item.MD5,
			Version:    ExtractVersion(item.Name),
		})
	}

	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}

	return entries, nil
}

// SelectLatest picks the most recently modified entry whose name matches
// the release filter. Ties keep the first-seen entry.
func SelectLatest(entries []Entry) (Entry, error) {
	var (
		latest Entry
		found  bool
	)

	for _, entry := range entries {
		if !isReleaseArchive(entry.Name) {
			continue
		}

		if !found || entry.ModifiedAt.After(latest.ModifiedAt) {
			latest = entry
			found = true
		}
	}

	if !found {
		return Entry{}, ErrNoMatchingEntry
	}

	return latest, nil
}

// ProbeUpdate lists the catalog, picks the newest release and compares its
// extracted version to currentVersion. Plain string inequality, there is
// no semantic ordering of versions.
func (c *Client) ProbeUpdate(ctx context.Context, currentVersion string) (*VersionProbe, error) {
	entries, err := c.ListEntries(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := SelectLatest(entries)
	if err != nil {
		return nil, err
	}

	probe := &VersionProbe{
		HasUpdate:     latest.Version != currentVersion,
		LatestVersion: latest.Version,
		Source:        latest,
	}

	logger.InfoKV(ctx, "Probed catalog for updates",
		"latest_version", probe.LatestVersion,
		"current_version", currentVersion,
		"has_update", probe.HasUpdate)

	return probe, nil
}

// ResolveDownloadLink asks the host for a transient download URL for the entry.
func (c *Client) ResolveDownloadLink(ctx context.Context, remotePath string) (string, error) {
	query := url.Values{}
	query.Set("public_key", c.folderURL)
	query.Set("path", remotePath)

	var link downloadLink
	if err := c.getJSON(ctx, c.baseURL+"/download?"+query.Encode(), &link); err != nil {
		return "", fmt.Errorf("%w: %w", ErrLinkResolution, err)
	}

	if link.Href == "" {
		return "", ErrLinkResolution
	}

	return link.Href, nil
}

// Download resolves the entry's transient link, streams its body to destPath
// and verifies the result. A partial file is left at destPath on failure,
// the caller owns its removal.
func (c *Client) Download(ctx context.Context, remotePath, destPath string, opts verify.Options) error {
	href, err := c.ResolveDownloadLink(ctx, remotePath)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrDownloadFailed, response.Status)
	}

	outputFile, err := os.Create(filepath.Clean(destPath))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	written, err := io.Copy(outputFile, response.Body)
	if closeErr := outputFile.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	logger.InfoKV(ctx, "Downloaded release archive", "path", destPath, "bytes", written)

	// The verifier re-reads the file; checking it against the streamed
	// byte count catches short writes even when the host reported no size.
	if opts.ExpectedSizeBytes == nil {
		opts.ExpectedSizeBytes = &written
	}

	return verify.File(destPath, opts)
}

// getJSON performs a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, requestURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return err
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", response.Status)
	}

	if err = json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
