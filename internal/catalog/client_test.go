package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/iis-server-builder/internal/verify"
)

const listingBody = `{
	"_embedded": {
		"items": [
			{"type": "dir", "name": "backups", "path": "/backups"},
			{"type": "file", "name": "readme.txt", "path": "/readme.txt",
				"modified": "2024-05-01T10:00:00+00:00", "size": 10},
			{"type": "file", "name": "IIS-v1.09.3.zip", "path": "/IIS-v1.09.3.zip",
				"modified": "2024-05-02T10:00:00+00:00", "size": 100,
				"md5": "5d41402abc4b2a76b9719d911017c592"},
			{"type": "file", "name": "ИИС v1.19.1.zip", "path": "/ИИС v1.19.1.zip",
				"modified": "2024-06-01T10:00:00+00:00", "size": 200}
		]
	}
}`

// newCatalogServer builds a fake public file host for the tests.
func newCatalogServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	var server *httptest.Server

	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.URL.Query().Get("path"))
		fmt.Fprintf(w, `{"href": %q}`, server.URL+"/file")
	})
	mux.HandleFunc("/file", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.URL.Query().Get("public_key"))
		_, _ = w.Write([]byte(listingBody))
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

// TestListEntries_FiltersDirectories keeps file rows only.
func TestListEntries_FiltersDirectories(t *testing.T) {
	t.Parallel()

	server := newCatalogServer(t, nil)
	client := NewClient("https://disk.example.com/d/abc", WithBaseURL(server.URL))

	entries, err := client.ListEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "readme", entries[0].Version)
	require.Equal(t, "v1.09.3", entries[1].Version)
}

// TestListEntries_Unavailable wraps transport failures.
func TestListEntries_Unavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewClient("https://disk.example.com/d/abc", WithBaseURL(server.URL))

	_, err := client.ListEntries(context.Background())
	require.ErrorIs(t, err, ErrCatalogUnavailable)
}

// TestSelectLatest_PicksNewestMatching prefers the most recent release.
func TestSelectLatest_PicksNewestMatching(t *testing.T) {
	t.Parallel()

	older := Entry{Name: "IIS-v1.09.3.zip", ModifiedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)}
	newer := Entry{Name: "ИИС v1.19.1.zip", ModifiedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	noise := Entry{Name: "readme.txt", ModifiedAt: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)}

	latest, err := SelectLatest([]Entry{older, noise, newer})
	require.NoError(t, err)
	require.Equal(t, newer.Name, latest.Name)
}

// TestSelectLatest_TieKeepsFirstSeen resolves equal timestamps stably.
func TestSelectLatest_TieKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	first := Entry{Name: "IIS-v1.09.3.zip", ModifiedAt: ts}
	second := Entry{Name: "IIS-v1.09.4.zip", ModifiedAt: ts}

	latest, err := SelectLatest([]Entry{first, second})
	require.NoError(t, err)
	require.Equal(t, first.Name, latest.Name)
}

// TestSelectLatest_NoMatch fails when the filter yields nothing.
func TestSelectLatest_NoMatch(t *testing.T) {
	t.Parallel()

	_, err := SelectLatest([]Entry{{Name: "readme.txt"}})
	require.ErrorIs(t, err, ErrNoMatchingEntry)
}

// TestProbeUpdate compares extracted versions by plain string equality.
func TestProbeUpdate(t *testing.T) {
	t.Parallel()

	server := newCatalogServer(t, nil)
	client := NewClient("https://disk.example.com/d/abc", WithBaseURL(server.URL))

	probe, err := client.ProbeUpdate(context.Background(), "v1.09.3")
	require.NoError(t, err)
	require.True(t, probe.HasUpdate)
	require.Equal(t, "v1.19.1", probe.LatestVersion)

	probe, err = client.ProbeUpdate(context.Background(), "v1.19.1")
	require.NoError(t, err)
	require.False(t, probe.HasUpdate)
}

// TestResolveDownloadLink_EmptyHref fails when the host returns no link.
func TestResolveDownloadLink_EmptyHref(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient("https://disk.example.com/d/abc", WithBaseURL(server.URL))

	_, err := client.ResolveDownloadLink(context.Background(), "/IIS-v1.09.3.zip")
	require.ErrorIs(t, err, ErrLinkResolution)
}

// TestDownload_StreamsAndVerifies writes the payload and passes verification.
func TestDownload_StreamsAndVerifies(t *testing.T) {
	t.Parallel()

	payload := []byte("hello")
	server := newCatalogServer(t, payload)
	client := NewClient("https://disk.example.com/d/abc", WithBaseURL(server.URL))

	dest := filepath.Join(t.TempDir(), "archive.zip")

	size := int64(len(payload))
	err := client.Download(context.Background(), "/IIS-v1.09.3.zip", dest, verify.Options{
		ExpectedSizeBytes: &size,
		ExpectedChecksum:  "5d41402abc4b2a76b9719d911017c592",
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

// TestDownload_ChecksumMismatch propagates the verifier failure and leaves the file.
func TestDownload_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	server := newCatalogServer(t, []byte("hello"))
	client := NewClient("https://disk.example.com/d/abc", WithBaseURL(server.URL))

	dest := filepath.Join(t.TempDir(), "archive.zip")

	err := client.Download(context.Background(), "/IIS-v1.09.3.zip", dest, verify.Options{
		ExpectedChecksum: "00000000000000000000000000000000",
	})
	require.ErrorIs(t, err, verify.ErrChecksumMismatch)

	// The partial artifact is the caller's to remove.
	_, statErr := os.Stat(dest)
	require.NoError(t, statErr)
}
