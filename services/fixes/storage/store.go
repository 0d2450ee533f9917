// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianRouter/services/fixes"
)

var (
	recordPrefix = []byte("fix/rec/")
	votePrefix   = []byte("fix/vote/")
	fraudPrefix  = []byte("fix/fraud/")
)

func recordKey(id string) []byte {
	return append(append([]byte(nil), recordPrefix...), id...)
}

func memberKey(prefix []byte, id, contributor string) []byte {
	k := append([]byte(nil), prefix...)
	k = append(k, id...)
	k = append(k, '/')
	return append(k, contributor...)
}

// FixStore implements fixes.Store on a DB.
//
// Thread Safety: safe for concurrent use.
type FixStore struct {
	db *DB
}

// NewFixStore wraps db.
func NewFixStore(db *DB) *FixStore {
	return &FixStore{db: db}
}

// SaveRecord writes rec.
func (s *FixStore) SaveRecord(ctx context.Context, rec fixes.FixRecord) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return putRecord(txn, rec)
	})
}

// SaveReport writes rec and the contributor's vote in one transaction.
func (s *FixStore) SaveReport(ctx context.Context, rec fixes.FixRecord, contributorID string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := putRecord(txn, rec); err != nil {
			return err
		}
		if contributorID == "" {
			return nil
		}
		return txn.Set(memberKey(votePrefix, rec.ID, contributorID), []byte{})
	})
}

// SaveFraudReport writes rec and the reporter in one transaction.
func (s *FixStore) SaveFraudReport(ctx context.Context, rec fixes.FixRecord, contributorID string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := putRecord(txn, rec); err != nil {
			return err
		}
		return txn.Set(memberKey(fraudPrefix, rec.ID, contributorID), []byte{})
	})
}

// Load reads every record with its voters and fraud reporters, ordered by
// fix id.
func (s *FixStore) Load(ctx context.Context) ([]fixes.StoredRecord, error) {
	byID := make(map[string]*fixes.StoredRecord)
	get := func(id string) *fixes.StoredRecord {
		sr, ok := byID[id]
		if !ok {
			sr = &fixes.StoredRecord{}
			byID[id] = sr
		}
		return sr
	}

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("fix/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			switch {
			case bytes.HasPrefix(key, recordPrefix):
				var rec fixes.FixRecord
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &rec)
				}); err != nil {
					return fmt.Errorf("decode %s: %w", key, err)
				}
				get(rec.ID).Record = rec
			case bytes.HasPrefix(key, votePrefix):
				id, who, ok := splitMember(key[len(votePrefix):])
				if ok {
					sr := get(id)
					sr.Voters = append(sr.Voters, who)
				}
			case bytes.HasPrefix(key, fraudPrefix):
				id, who, ok := splitMember(key[len(fraudPrefix):])
				if ok {
					sr := get(id)
					sr.FraudReporters = append(sr.FraudReporters, who)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]fixes.StoredRecord, 0, len(byID))
	for id, sr := range byID {
		// Votes without a record are orphans from an interrupted write.
		if sr.Record.ID != id {
			continue
		}
		out = append(out, *sr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Record.ID < out[j].Record.ID })
	return out, nil
}

// Count returns the number of stored records.
func (s *FixStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func putRecord(txn *badger.Txn, rec fixes.FixRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode fix %s: %w", rec.ID, err)
	}
	return txn.Set(recordKey(rec.ID), data)
}

// splitMember splits "<fix_id>/<contributor>". Fix ids never contain '/'.
func splitMember(rest []byte) (id, contributor string, ok bool) {
	i := bytes.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return string(rest[:i]), string(rest[i+1:]), true
}
