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

package aws

import (
	"log/slog"
	"time"
)

type BlobStoreS3OptionFunc func(*BlobStoreS3)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.logger = logger
	}
}

func WithBucket(bucket string) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.bucket = bucket
	}
}

func WithRegion(region string) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.region = region
	}
}

// WithPrefix places every archive object below the given key prefix
func WithPrefix(prefix string) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.prefix = prefix
	}
}

// WithEndpoint points the client at an S3 compatible service such as MinIO.
// Path style addressing is used when an endpoint is set.
func WithEndpoint(endpoint string) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.endpoint = endpoint
	}
}

func WithTimeout(timeout time.Duration) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.timeout = timeout
	}
}

// WithEncryption seals every object with sops using the KMS keys named in
// the environment
func WithEncryption(enabled bool) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.encrypt = enabled
	}
}
