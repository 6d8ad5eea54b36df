// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store implements an on-disk stage-checkpoint cache for the
// pipeline (spec.md §5): each stage's per-anchor output is keyed by
// (stage, anchor id) and persisted with modernc.org/kv. The pipeline caches
// only the per-anchor ensemble stage: a rerun skips recruitment for anchors
// already committed, without checking whether their inputs changed, and
// always recomputes tiling, features, embedding and clustering.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"modernc.org/kv"
)

var order = binary.BigEndian

// Key identifies one cached stage result.
type Key struct {
	Stage    string
	AnchorID string
}

// Marshal encodes k as length-prefixed stage then anchor id, in that order,
// so ByStageThenAnchor groups all entries for a stage contiguously.
func (k Key) Marshal() []byte {
	var buf bytes.Buffer
	var b [8]byte
	order.PutUint64(b[:], uint64(len(k.Stage)))
	buf.Write(b[:])
	buf.WriteString(k.Stage)
	order.PutUint64(b[:], uint64(len(k.AnchorID)))
	buf.Write(b[:])
	buf.WriteString(k.AnchorID)
	return buf.Bytes()
}

// UnmarshalKey decodes a key produced by Key.Marshal.
func UnmarshalKey(data []byte) Key {
	n64 := binary.Size(uint64(0))
	n := order.Uint64(data[:n64])
	data = data[n64:]
	stage := string(data[:n])
	data = data[n:]
	n = order.Uint64(data[:n64])
	data = data[n64:]
	anchorID := string(data[:n])
	return Key{Stage: stage, AnchorID: anchorID}
}

// ByStageThenAnchor is a kv compare function ordering entries by stage name
// then anchor id, so a full-stage scan is a contiguous range.
func ByStageThenAnchor(x, y []byte) int {
	if bytes.Equal(x, y) {
		return 0
	}
	kx := UnmarshalKey(x)
	ky := UnmarshalKey(y)
	switch {
	case kx.Stage < ky.Stage:
		return -1
	case kx.Stage > ky.Stage:
		return 1
	}
	switch {
	case kx.AnchorID < ky.AnchorID:
		return -1
	case kx.AnchorID > ky.AnchorID:
		return 1
	}
	panic("unreachable")
}

// Cache wraps a kv.DB opened with ByStageThenAnchor, providing typed
// get/put for JSON-encoded per-anchor stage checkpoints.
type Cache struct {
	db *kv.DB
}

// Create creates a new checkpoint cache at path, truncating any existing
// file.
func Create(path string) (*Cache, error) {
	db, err := kv.Create(path, &kv.Options{Compare: ByStageThenAnchor})
	if err != nil {
		return nil, fmt.Errorf("store: creating checkpoint cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Open opens an existing checkpoint cache at path.
func Open(path string) (*Cache, error) {
	db, err := kv.Open(path, &kv.Options{Compare: ByStageThenAnchor})
	if err != nil {
		return nil, fmt.Errorf("store: opening checkpoint cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores v as the checkpoint for (stage, anchorID), replacing any
// existing entry, inside its own transaction.
func (c *Cache) Put(stage, anchorID string, v interface{}) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshaling checkpoint %s/%s: %w", stage, anchorID, err)
	}
	if err := c.db.BeginTransaction(); err != nil {
		return err
	}
	key := Key{Stage: stage, AnchorID: anchorID}.Marshal()
	if err := c.db.Set(key, value); err != nil {
		return err
	}
	return c.db.Commit()
}

// Get decodes the checkpoint for (stage, anchorID) into v. ok is false if
// no checkpoint exists.
func (c *Cache) Get(stage, anchorID string, v interface{}) (ok bool, err error) {
	key := Key{Stage: stage, AnchorID: anchorID}.Marshal()
	value, err := c.db.Get(nil, key)
	if err != nil {
		return false, err
	}
	if value == nil {
		return false, nil
	}
	if err := json.Unmarshal(value, v); err != nil {
		return false, fmt.Errorf("store: unmarshaling checkpoint %s/%s: %w", stage, anchorID, err)
	}
	return true, nil
}

// AnchorsDone returns the anchor ids with a committed checkpoint for stage,
// in ascending order, by scanning the stage's contiguous key range.
func (c *Cache) AnchorsDone(stage string) ([]string, error) {
	lo := Key{Stage: stage, AnchorID: ""}.Marshal()
	it, _, err := c.db.Seek(lo)
	if err != nil {
		return nil, err
	}
	var out []string
	for {
		k, _, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		key := UnmarshalKey(k)
		if key.Stage != stage {
			break
		}
		out = append(out, key.AnchorID)
	}
	return out, nil
}
