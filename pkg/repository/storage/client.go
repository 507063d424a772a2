package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/metrics"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
)

const registryKey = "registry/prompts.json.gz"

// Client provides storage operations with compression. The prompt
// registry flushes its store document here; the monitor archives
// metrics exports.
type Client struct {
	adapter interfaces.StorageAdapter
}

// New creates a new storage client
func New(adapter interfaces.StorageAdapter) *Client {
	return &Client{
		adapter: adapter,
	}
}

// SaveRegistry saves the registry store document with gzip compression
func (c *Client) SaveRegistry(ctx context.Context, doc *prompt.StoreDocument) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal registry store")
	}

	compressed, err := c.compressData(jsonData)
	if err != nil {
		return goerr.Wrap(err, "failed to compress registry store")
	}

	if err := c.adapter.Put(ctx, registryKey, compressed); err != nil {
		return goerr.Wrap(err, "failed to save registry store",
			goerr.V("key", registryKey),
		)
	}

	return nil
}

// LoadRegistry loads the registry store document. Returns
// interfaces.ErrStorageKeyNotFound when no document has been saved yet.
func (c *Client) LoadRegistry(ctx context.Context) (*prompt.StoreDocument, error) {
	compressed, err := c.adapter.Get(ctx, registryKey)
	if err != nil {
		if err == interfaces.ErrStorageKeyNotFound {
			return nil, err
		}
		return nil, goerr.Wrap(err, "failed to load registry store",
			goerr.V("key", registryKey),
		)
	}

	jsonData, err := c.decompressData(compressed)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decompress registry store")
	}

	var doc prompt.StoreDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal registry store")
	}

	return &doc, nil
}

// SaveMetricsExport archives one metrics export keyed by its export time
func (c *Client) SaveMetricsExport(ctx context.Context, export *metrics.Export) error {
	jsonData, err := json.Marshal(export)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal metrics export")
	}

	compressed, err := c.compressData(jsonData)
	if err != nil {
		return goerr.Wrap(err, "failed to compress metrics export")
	}

	key := c.buildMetricsKey(export.ExportedAt)
	if err := c.adapter.Put(ctx, key, compressed); err != nil {
		return goerr.Wrap(err, "failed to save metrics export",
			goerr.V("key", key),
		)
	}

	return nil
}

// buildMetricsKey constructs the archive key for a metrics export
func (c *Client) buildMetricsKey(at time.Time) string {
	return fmt.Sprintf("metrics/%s.json.gz", at.UTC().Format("20060102T150405Z"))
}

// compressData compresses data using gzip
func (c *Client) compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, goerr.Wrap(err, "failed to write compressed data")
	}

	if err := w.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to close gzip writer")
	}

	return buf.Bytes(), nil
}

// decompressData decompresses gzip data
func (c *Client) decompressData(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gzip reader")
	}
	defer r.Close()

	decompressed, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read decompressed data")
	}

	return decompressed, nil
}
