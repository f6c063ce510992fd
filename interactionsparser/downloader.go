package interactionsparser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/giygas/ems-interactions-api/logging"
)

// maxDownloadSize bounds a remote reference table
const maxDownloadSize = 16 * 1024 * 1024

// download fetches a remote table and returns it as UTF-8
func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxDownloadSize {
		return nil, fmt.Errorf("download %s exceeds %d bytes", url, maxDownloadSize)
	}

	return toUTF8(body, url)
}

// toUTF8 returns body unchanged when it is valid UTF-8 and decodes it as
// ISO-8859-1 otherwise. Hospital exports are often Latin-1.
func toUTF8(body []byte, source string) ([]byte, error) {
	if utf8.Valid(body) {
		return body, nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s as ISO-8859-1: %w", source, err)
	}
	logging.Debug("Decoded rules table from ISO-8859-1", "source", source)
	return decoded, nil
}
