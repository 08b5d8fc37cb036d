// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package drill

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.astrophena.name/drillbot/internal/store"
)

// ErrNotFound is returned by DB.Learner when no record exists for a chat.
var ErrNotFound = errors.New("learner not found")

const keyPrefix = "learner/"

// DB is a typed view of learner records in a key-value store.
type DB struct {
	store store.Store
}

// NewDB wraps s in a DB.
func NewDB(s store.Store) *DB { return &DB{store: s} }

func key(chatID int64) string { return keyPrefix + strconv.FormatInt(chatID, 10) }

// Learner loads the record for a chat, or ErrNotFound.
func (db *DB) Learner(ctx context.Context, chatID int64) (*Learner, error) {
	b, err := db.store.Get(ctx, key(chatID))
	if err != nil {
		return nil, fmt.Errorf("loading learner %d: %w", chatID, err)
	}
	if b == nil {
		return nil, ErrNotFound
	}
	var l Learner
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("unmarshaling learner %d: %w", chatID, err)
	}
	return &l, nil
}

// Save writes the learner record back to the store.
func (db *DB) Save(ctx context.Context, l *Learner) error {
	b, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshaling learner %d: %w", l.ChatID, err)
	}
	if err := db.store.Set(ctx, key(l.ChatID), b); err != nil {
		return fmt.Errorf("saving learner %d: %w", l.ChatID, err)
	}
	return nil
}

// Delete removes the learner record.
func (db *DB) Delete(ctx context.Context, chatID int64) error {
	return db.store.Delete(ctx, key(chatID))
}

// Learners returns all learner records, ordered by chat ID.
func (db *DB) Learners(ctx context.Context) ([]*Learner, error) {
	var learners []*Learner
	err := db.store.ForEach(ctx, func(k string, v []byte) error {
		if !strings.HasPrefix(k, keyPrefix) {
			return nil
		}
		var l Learner
		if err := json.Unmarshal(v, &l); err != nil {
			return fmt.Errorf("unmarshaling %q: %w", k, err)
		}
		learners = append(learners, &l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(learners, func(a, b *Learner) int {
		return cmp.Compare(a.ChatID, b.ChatID)
	})
	return learners, nil
}
