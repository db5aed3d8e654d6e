/*
 * Copyright 2023 Vesplit Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package store

import (
	"encoding/binary"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/engine"
)

var (
	snapshotPrefix = []byte("s/")
	latestKey      = []byte("latest")
)

// Store persists engine snapshots in a local leveldb, keyed by epoch in
// big-endian so iteration runs in epoch order. It is an operator diagnostic
// sink; losing it loses history, never state.
type Store struct {
	db  *leveldb.DB
	log log.Logger
}

func Open(path string, logger log.Logger) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapcf(err, errors.UnknownError, "open store at %s", path)
	}
	return &Store{
		db:  db,
		log: logger.WithFields(log.Fields{log.FieldKeyModule: "store"}),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func snapshotKey(epoch int64) []byte {
	key := make([]byte, len(snapshotPrefix)+8)
	copy(key, snapshotPrefix)
	binary.BigEndian.PutUint64(key[len(snapshotPrefix):], uint64(epoch))
	return key
}

// PutSnapshot writes the snapshot under its epoch and updates the latest
// pointer. A later snapshot of the same epoch overwrites the earlier one.
func (s *Store) PutSnapshot(snap *engine.Snapshot) error {
	raw, err := msgpack.Marshal(snap)
	if err != nil {
		return errors.Wrapc(err, errors.UnknownError, "encode snapshot")
	}
	batch := new(leveldb.Batch)
	batch.Put(snapshotKey(snap.Epoch), raw)
	batch.Put(latestKey, raw)
	if err := s.db.Write(batch, nil); err != nil {
		return errors.Wrapcf(err, errors.UnknownError, "write snapshot epoch=%d", snap.Epoch)
	}
	s.log.Debugf("snapshot stored epoch=%d taken_at=%d", snap.Epoch, snap.TakenAt)
	return nil
}

func (s *Store) get(key []byte) (*engine.Snapshot, error) {
	raw, err := s.db.Get(key, nil)
	if err == ldberrors.ErrNotFound {
		return nil, errors.NotFoundError.Errorf("no snapshot for key %q", key)
	}
	if err != nil {
		return nil, errors.Wrapc(err, errors.UnknownError, "read snapshot")
	}
	snap := new(engine.Snapshot)
	if err := msgpack.Unmarshal(raw, snap); err != nil {
		return nil, errors.Wrapc(err, errors.UnknownError, "decode snapshot")
	}
	return snap, nil
}

func (s *Store) LatestSnapshot() (*engine.Snapshot, error) {
	return s.get(latestKey)
}

func (s *Store) SnapshotAt(epoch int64) (*engine.Snapshot, error) {
	return s.get(snapshotKey(epoch))
}

// Snapshots returns up to limit stored snapshots in ascending epoch order.
func (s *Store) Snapshots(limit int) ([]*engine.Snapshot, error) {
	iter := s.db.NewIterator(util.BytesPrefix(snapshotPrefix), nil)
	defer iter.Release()
	var out []*engine.Snapshot
	for iter.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		snap := new(engine.Snapshot)
		if err := msgpack.Unmarshal(iter.Value(), snap); err != nil {
			return nil, errors.Wrapc(err, errors.UnknownError, "decode snapshot")
		}
		out = append(out, snap)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrapc(err, errors.UnknownError, "iterate snapshots")
	}
	return out, nil
}
