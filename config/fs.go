package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/wippyai/wasishim/errors"
	"github.com/wippyai/wasishim/vfs"
)

// BuildFS creates the VFS with the configured preopens and seeds every file
// entry. A nil client means http.DefaultClient. On error nothing is leaked.
func (c *Config) BuildFS(ctx context.Context, client *http.Client) (*vfs.FS, error) {
	fs, err := vfs.New(c.Preopens...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFS, errors.KindInvalidInput, err, "create filesystem")
	}

	for i, f := range c.Files {
		if err := c.seed(ctx, client, fs, f); err != nil {
			_ = fs.Close()
			e := errors.Wrap(errors.PhaseFS, errors.KindInvalidData, err, "seed "+f.Path)
			e.Path = []string{"files", fmt.Sprint(i)}
			return nil, e
		}
	}
	return fs, nil
}

func (c *Config) seed(ctx context.Context, client *http.Client, fs *vfs.FS, f File) error {
	switch {
	case f.Content != "":
		return fs.AddFile(f.Path, []byte(f.Content))

	case f.URL != "":
		if !f.Lazy {
			data, err := fetch(ctx, client, f.URL)
			if err != nil {
				return err
			}
			return fs.AddFile(f.Path, data)
		}
		blob, err := vfs.OpenHTTPBlob(ctx, client, f.URL)
		if err != nil {
			return err
		}
		return fs.AddBlob(f.Path, blob)

	case f.Lazy:
		file, err := os.Open(c.hostPath(f.Host))
		if err != nil {
			return err
		}
		info, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return err
		}
		if err := fs.AddBlob(f.Path, vfs.NewReaderAtBlob(file, info.Size())); err != nil {
			_ = file.Close()
			return err
		}
		return nil

	default:
		data, err := os.ReadFile(c.hostPath(f.Host))
		if err != nil {
			return err
		}
		data, err = decompress(f.Compression, data)
		if err != nil {
			return err
		}
		return fs.AddFile(f.Path, data)
	}
}

func (c *Config) hostPath(p string) string {
	if filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

func decompress(format string, data []byte) ([]byte, error) {
	switch format {
	case "":
		return data, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil
	case CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", format)
	}
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
