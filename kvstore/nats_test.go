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
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/gofleet/broker"
	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/log"
)

func startNatsServer(t *testing.T) *natsserver.Server {
	t.Helper()

	serv, err := natsserver.NewServer(&natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	ready := make(chan bool)
	go func() {
		ready <- true
		serv.Start()
	}()
	<-ready

	if !serv.ReadyForConnections(2 * time.Second) {
		t.Fatalf("nats-io server failed to start")
	}

	return serv
}

func TestNatsStore(t *testing.T) {
	t.Run("With round trip", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()

		client, err := broker.Connect(&broker.Config{URL: serv.ClientURL()}, broker.WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		kv, err := client.KeyValue("core_manager_state")
		require.NoError(t, err)

		store := NewNatsStore(kv)
		require.NoError(t, store.Put(ctx, "state", []byte("snapshot")))
		value, err := store.Get(ctx, "state")
		require.NoError(t, err)
		assert.Equal(t, []byte("snapshot"), value)

		require.NoError(t, store.Close())
		require.NoError(t, client.Close())
	})
	t.Run("With a missing key", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()

		client, err := broker.Connect(&broker.Config{URL: serv.ClientURL()}, broker.WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		kv, err := client.KeyValue("core_manager_state")
		require.NoError(t, err)

		store := NewNatsStore(kv)
		_, err = store.Get(ctx, "absent")
		assert.ErrorIs(t, err, gerrors.ErrKeyNotFound)

		require.NoError(t, store.Close())
		require.NoError(t, client.Close())
	})
	t.Run("With delete", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()

		client, err := broker.Connect(&broker.Config{URL: serv.ClientURL()}, broker.WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		kv, err := client.KeyValue("admin_auth_state")
		require.NoError(t, err)

		store := NewNatsStore(kv)
		require.NoError(t, store.Put(ctx, "admin_auth.root", []byte("{}")))
		require.NoError(t, store.Delete(ctx, "admin_auth.root"))
		_, err = store.Get(ctx, "admin_auth.root")
		assert.ErrorIs(t, err, gerrors.ErrKeyNotFound)

		require.NoError(t, store.Close())
		require.NoError(t, client.Close())
	})
	t.Run("With a closed store", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()

		client, err := broker.Connect(&broker.Config{URL: serv.ClientURL()}, broker.WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		kv, err := client.KeyValue("core_manager_state")
		require.NoError(t, err)

		store := NewNatsStore(kv)
		require.NoError(t, store.Close())

		_, err = store.Get(ctx, "state")
		assert.ErrorIs(t, err, gerrors.ErrStoreClosed)
		assert.ErrorIs(t, store.Put(ctx, "state", nil), gerrors.ErrStoreClosed)

		require.NoError(t, client.Close())
	})
}
