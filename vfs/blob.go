package vfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Blob is byte-addressable content fetched on demand.
type Blob interface {
	Size() int64
	// ReadRange returns exactly n bytes starting at off, with off+n <= Size().
	ReadRange(ctx context.Context, off, n int64) ([]byte, error)
}

// ReaderAtBlob serves ranges from an io.ReaderAt, typically a host file.
type ReaderAtBlob struct {
	r    io.ReaderAt
	size int64
}

// NewReaderAtBlob returns a blob of size bytes backed by r. If r is an
// io.Closer it is closed with the filesystem.
func NewReaderAtBlob(r io.ReaderAt, size int64) *ReaderAtBlob {
	return &ReaderAtBlob{r: r, size: size}
}

func (b *ReaderAtBlob) Size() int64 { return b.size }

func (b *ReaderAtBlob) ReadRange(ctx context.Context, off, n int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	read, err := b.r.ReadAt(buf, off)
	if err != nil && !(err == io.EOF && int64(read) == n) {
		return nil, fmt.Errorf("read range %d+%d: %w", off, n, err)
	}
	return buf, nil
}

// Close closes the underlying reader when it supports closing.
func (b *ReaderAtBlob) Close() error {
	if c, ok := b.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// HTTPBlob serves ranges from a URL with HTTP Range requests.
type HTTPBlob struct {
	client *http.Client
	url    string
	size   int64
}

// NewHTTPBlob returns a blob for url of the given size. A nil client means
// http.DefaultClient.
func NewHTTPBlob(client *http.Client, url string, size int64) *HTTPBlob {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBlob{client: client, url: url, size: size}
}

// OpenHTTPBlob issues a HEAD request to learn the content length of url.
func OpenHTTPBlob(ctx context.Context, client *http.Client, url string) (*HTTPBlob, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("head %s: %w", url, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("head %s: unexpected status %s", url, resp.Status)
	}
	if resp.ContentLength < 0 {
		return nil, fmt.Errorf("head %s: missing content length", url)
	}
	return NewHTTPBlob(client, url, resp.ContentLength), nil
}

func (b *HTTPBlob) Size() int64 { return b.size }

func (b *HTTPBlob) ReadRange(ctx context.Context, off, n int64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+n-1))

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", b.url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// server ignored the range; skip to off
		if _, err := io.CopyN(io.Discard, resp.Body, off); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", b.url, err)
		}
	default:
		return nil, fmt.Errorf("fetch %s: unexpected status %s", b.url, resp.Status)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", b.url, err)
	}
	return buf, nil
}
