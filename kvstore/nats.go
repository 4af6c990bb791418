// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	gerrors "github.com/tochemey/gofleet/errors"
)

// NatsStore implements Store on top of a JetStream Key/Value bucket.
// The bucket outlives any single worker, so every worker of a deployment
// reads the snapshot the last writer produced.
type NatsStore struct {
	kv     nats.KeyValue
	closed atomic.Bool
}

var _ Store = (*NatsStore)(nil)

// NewNatsStore wraps the given Key/Value bucket, typically obtained from
// broker.Client.KeyValue. The underlying connection stays owned by the
// broker client; closing the store does not close the connection.
func NewNatsStore(kv nats.KeyValue) *NatsStore {
	return &NatsStore{kv: kv}
}

// Get implements Store.
func (s *NatsStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	entry, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, gerrors.ErrKeyNotFound
		}
		return nil, fmt.Errorf("kvstore: get key=(%s): %w", key, err)
	}
	return entry.Value(), nil
}

// Put implements Store.
func (s *NatsStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := contextErr(ctx); err != nil {
		return err
	}
	if _, err := s.kv.Put(key, value); err != nil {
		return fmt.Errorf("kvstore: put key=(%s): %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *NatsStore) Delete(ctx context.Context, key string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := contextErr(ctx); err != nil {
		return err
	}
	if err := s.kv.Delete(key); err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("kvstore: delete key=(%s): %w", key, err)
	}
	return nil
}

// Close implements Store. The bucket handle holds no resources of its own,
// so closing only fences further operations.
func (s *NatsStore) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *NatsStore) ensureOpen() error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return nil
}
