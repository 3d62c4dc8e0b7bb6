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

package objstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tallyforge/formvault/database/types"
)

// stagedTxn buffers writes until Commit. A nil value is a pending delete.
type stagedTxn struct {
	store    *Store
	writes   map[string][]byte
	update   bool
	finished bool
}

func (t *stagedTxn) stage(name string, val []byte) {
	t.writes[name] = val
}

// Commit uploads staged writes in key order. Object storage has no multi-key
// atomicity, so a failure part way through leaves earlier writes in place.
func (t *stagedTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if len(t.writes) == 0 {
		return nil
	}
	backend, err := t.store.getBackend()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(t.writes))
	for name := range t.writes {
		names = append(names, name)
	}
	sort.Strings(names)
	ctx, cancel := t.store.opContext()
	defer cancel()
	for _, name := range names {
		val := t.writes[name]
		if val == nil {
			err = backend.Remove(ctx, name)
			if errors.Is(err, ErrObjectNotFound) {
				err = nil
			}
		} else {
			err = backend.Write(ctx, name, val)
		}
		if err != nil {
			t.store.logger.Error(
				"object store commit failed",
				"object", name,
				"error", err,
			)
			return fmt.Errorf("commit %s: %w", name, err)
		}
	}
	return nil
}

func (t *stagedTxn) Rollback() error {
	t.finished = true
	t.writes = nil
	return nil
}

type iterator struct {
	err     error
	store   *Store
	txn     *stagedTxn
	names   []string
	idx     int
	reverse bool
}

func (it *iterator) Rewind() { it.idx = 0 }

func (it *iterator) Seek(prefix []byte) {
	target := it.store.objectName(prefix)
	it.idx = len(it.names)
	for i, name := range it.names {
		if (!it.reverse && name >= target) || (it.reverse && name <= target) {
			it.idx = i
			return
		}
	}
}

func (it *iterator) Valid() bool {
	return it.err == nil && it.idx < len(it.names)
}

func (it *iterator) ValidForPrefix(prefix []byte) bool {
	return it.Valid() &&
		strings.HasPrefix(it.names[it.idx], it.store.objectName(prefix))
}

func (it *iterator) Next() {
	if it.idx < len(it.names) {
		it.idx++
	}
}

func (it *iterator) Item() types.BlobItem {
	if !it.Valid() {
		return nil
	}
	return &item{iter: it, name: it.names[it.idx]}
}

func (it *iterator) Close()     {}
func (it *iterator) Err() error { return it.err }

type item struct {
	iter *iterator
	name string
}

func (i *item) Key() []byte {
	key, err := i.iter.store.objectKey(i.name)
	if err != nil {
		return nil
	}
	return key
}

func (i *item) ValueCopy(dst []byte) ([]byte, error) {
	key, err := i.iter.store.objectKey(i.name)
	if err != nil {
		return nil, err
	}
	data, err := i.iter.store.Get(i.iter.txn, key)
	if err != nil {
		return nil, err
	}
	return append(dst[:0], data...), nil
}
