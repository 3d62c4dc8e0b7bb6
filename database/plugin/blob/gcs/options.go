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
	"log/slog"
	"time"
)

type BlobStoreGCSOptionFunc func(*BlobStoreGCS)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) BlobStoreGCSOptionFunc {
	return func(d *BlobStoreGCS) {
		d.logger = logger
	}
}

func WithBucket(bucket string) BlobStoreGCSOptionFunc {
	return func(d *BlobStoreGCS) {
		d.bucketName = bucket
	}
}

func WithPrefix(prefix string) BlobStoreGCSOptionFunc {
	return func(d *BlobStoreGCS) {
		d.prefix = prefix
	}
}

// WithCredentialsFile uses a service account key instead of application
// default credentials
func WithCredentialsFile(path string) BlobStoreGCSOptionFunc {
	return func(d *BlobStoreGCS) {
		d.credentialsFile = path
	}
}

func WithTimeout(timeout time.Duration) BlobStoreGCSOptionFunc {
	return func(d *BlobStoreGCS) {
		d.timeout = timeout
	}
}

// WithEncryption seals every object with sops using the KMS keys named in
// the environment
func WithEncryption(enabled bool) BlobStoreGCSOptionFunc {
	return func(d *BlobStoreGCS) {
		d.encrypt = enabled
	}
}
