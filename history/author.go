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

package history

import (
	"context"
	"slices"
)

// Author holds the display fields shown next to a version
type Author struct {
	ID          string
	DisplayName string
	Email       string
}

// AuthorDirectory resolves user IDs to display fields. IDs it does not know
// are left out of the result.
type AuthorDirectory interface {
	LookupAuthors(ctx context.Context, ids []string) (map[string]Author, error)
}

// StaticAuthorDirectory is an AuthorDirectory backed by a fixed map
type StaticAuthorDirectory map[string]Author

func (d StaticAuthorDirectory) LookupAuthors(
	_ context.Context,
	ids []string,
) (map[string]Author, error) {
	ret := make(map[string]Author, len(ids))
	for _, id := range ids {
		if author, ok := d[id]; ok {
			if author.ID == "" {
				author.ID = id
			}
			ret[id] = author
		}
	}
	return ret, nil
}

// fillAuthors sets Author on each version. A directory failure only costs the
// display fields.
func (s *Service) fillAuthors(ctx context.Context, versions ...*Version) {
	if s.authors == nil || len(versions) == 0 {
		return
	}
	ids := make([]string, 0, len(versions))
	for _, v := range versions {
		if v.CreatedBy != "" && !slices.Contains(ids, v.CreatedBy) {
			ids = append(ids, v.CreatedBy)
		}
	}
	authors, err := s.authors.LookupAuthors(ctx, ids)
	if err != nil {
		s.logger.Warn(
			"author lookup failed",
			"error", err,
		)
		return
	}
	for _, v := range versions {
		if author, ok := authors[v.CreatedBy]; ok {
			v.Author = &author
		}
	}
}
