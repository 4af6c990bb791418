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

// Package kvstore defines the durable key/value store used to persist state
// snapshots between worker restarts. Two implementations are provided: a
// JetStream Key/Value store shared by every worker of a deployment, and a
// local BoltDB store for single-worker deployments running without a broker.
package kvstore

import "context"

// Store is a durable key/value store for state snapshots.
//
// Implementations must be safe for concurrent use. A snapshot is opaque to
// the store; encoding and integrity checking belong to the caller.
type Store interface {
	// Get returns the value stored under the given key.
	// It returns errors.ErrKeyNotFound when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores or replaces the value under the given key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes the given key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the resources held by the store. Operations on a closed
	// store return errors.ErrStoreClosed.
	Close() error
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
