// Package fetch opens the documents civil classifies and trains on.
// A source is "-" for standard input, an http(s) URL, or a local file path.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults used by a zero Options value.
const (
	DefaultMaxBytes  = 10 * 1024 * 1024
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "civil/1.0"
)

// Options limits what a Fetcher reads.
type Options struct {
	MaxBytes  int64         // per-source size limit
	Timeout   time.Duration // whole HTTP request, including the body
	UserAgent string
}

// Fetcher opens sources with size limits and HTTP timeouts. It is safe for
// concurrent use.
type Fetcher struct {
	opts   Options
	client *http.Client
	stdin  io.Reader
}

// New returns a Fetcher; zero fields in opts take the package defaults.
func New(opts Options) *Fetcher {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	// phase timeouts are fractions of the overall request timeout
	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: opts.Timeout / 6}).DialContext,
			TLSHandshakeTimeout:   opts.Timeout / 6,
			ResponseHeaderTimeout: opts.Timeout / 2,
			DisableKeepAlives:     true,
		},
	}
	return &Fetcher{opts: opts, client: client, stdin: os.Stdin}
}

// WithStdin returns a copy of f that reads "-" from r.
func (f *Fetcher) WithStdin(r io.Reader) *Fetcher {
	clone := *f
	clone.stdin = r
	return &clone
}

// limitedReadCloser fails reads past the size limit instead of truncating
type limitedReadCloser struct {
	io.ReadCloser
	N      int64 // bytes remaining
	source string
}

func (l *limitedReadCloser) Read(p []byte) (n int, err error) {
	if l.N <= 0 {
		// allow a clean EOF exactly at the limit
		var probe [1]byte
		if m, _ := l.ReadCloser.Read(probe[:]); m == 0 {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("content from %q exceeds size limit", l.source)
	}
	if int64(len(p)) > l.N {
		p = p[:l.N]
	}
	n, err = l.ReadCloser.Read(p)
	l.N -= int64(n)
	return
}

// Open returns a reader for source; the caller must close it.
func (f *Fetcher) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	switch {
	case source == "-":
		return &limitedReadCloser{ReadCloser: io.NopCloser(f.stdin), N: f.opts.MaxBytes, source: "stdin"}, nil
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return f.openURL(ctx, source)
	default:
		return f.openFile(source)
	}
}

// ReadAll reads source completely.
func (f *Fetcher) ReadAll(ctx context.Context, source string) ([]byte, error) {
	rc, err := f.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", source, err)
	}
	return data, nil
}

func (f *Fetcher) openURL(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL %q: %w", url, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %q: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request failed for URL %q: status %s", url, resp.Status)
	}

	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil && size > f.opts.MaxBytes {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP content too large (%d bytes > %d bytes limit)", size, f.opts.MaxBytes)
		}
	}

	return &limitedReadCloser{ReadCloser: resp.Body, N: f.opts.MaxBytes, source: url}, nil
}

func (f *Fetcher) openFile(path string) (io.ReadCloser, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file %q does not exist", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access file %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory", path)
	}
	if info.Size() > f.opts.MaxBytes {
		return nil, fmt.Errorf("file %q is too large (%d bytes > %d bytes limit)", path, info.Size(), f.opts.MaxBytes)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	return file, nil
}
