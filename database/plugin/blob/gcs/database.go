// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/tallyforge/formvault/database/plugin/blob/internal/objstore"
	"github.com/tallyforge/formvault/database/sops"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var errNoEncryptionKeys = errors.New("encryption requested but no KMS key is configured")

// BlobStoreGCS archives pruned versions as objects in a Google Cloud Storage
// bucket. Writes are uploaded when the transaction commits.
type BlobStoreGCS struct {
	*objstore.Store
	logger          *slog.Logger
	client          *storage.Client
	bucketName      string
	prefix          string
	credentialsFile string
	timeout         time.Duration
	encrypt         bool
}

// NewWithOptions creates the store. No network access happens until Start.
func NewWithOptions(opts ...BlobStoreGCSOptionFunc) (*BlobStoreGCS, error) {
	d := &BlobStoreGCS{}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d.logger = d.logger.With("component", "database", "store", "gcs")
	if d.prefix != "" && !strings.HasSuffix(d.prefix, "/") {
		d.prefix += "/"
	}
	d.Store = objstore.New(nil, d.prefix, d.timeout, d.logger)
	if d.encrypt {
		if !sops.KeysConfigured() {
			return nil, errNoEncryptionKeys
		}
		d.SetCodec(sops.Codec{})
	}
	return d, nil
}

// ValidateCredentials checks that an explicitly configured credentials file
// exists. An empty path means application default credentials.
func ValidateCredentials(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("GCS credentials file does not exist: %s", path)
		}
		return fmt.Errorf("GCS credentials file: %w", err)
	}
	return nil
}

// Start implements the plugin.Plugin interface
func (d *BlobStoreGCS) Start() error {
	if d.bucketName == "" {
		return errors.New("gcs blob: bucket not set")
	}
	if err := ValidateCredentials(d.credentialsFile); err != nil {
		return err
	}
	clientOpts := []option.ClientOption{}
	if d.credentialsFile != "" {
		clientOpts = append(
			clientOpts,
			option.WithCredentialsFile(d.credentialsFile),
		)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return fmt.Errorf("gcs blob: failed in creating storage client: %w", err)
	}
	d.client = client
	d.SetBackend(&gcsBackend{bucket: client.Bucket(d.bucketName)})
	d.logger.Info("archive bucket ready", "bucket", d.bucketName, "prefix", d.prefix)
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreGCS) Stop() error {
	return d.Close()
}

// Close closes the GCS client
func (d *BlobStoreGCS) Close() error {
	if d.client == nil {
		return nil
	}
	d.SetBackend(nil)
	err := d.client.Close()
	d.client = nil
	return err
}

func (d *BlobStoreGCS) BucketName() string {
	return d.bucketName
}

type gcsBackend struct {
	bucket *storage.BucketHandle
}

func (b *gcsBackend) Read(ctx context.Context, name string) ([]byte, error) {
	r, err := b.bucket.Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, objstore.ErrObjectNotFound
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *gcsBackend) Write(ctx context.Context, name string, data []byte) error {
	w := b.bucket.Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsBackend) Remove(ctx context.Context, name string) error {
	err := b.bucket.Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return objstore.ErrObjectNotFound
	}
	return err
}

func (b *gcsBackend) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
}
