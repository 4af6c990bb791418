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

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

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

func testClient(t *testing.T, serv *natsserver.Server) *broker.Client {
	t.Helper()
	client, err := broker.Connect(&broker.Config{URL: serv.ClientURL()}, broker.WithLogger(log.DiscardLogger))
	require.NoError(t, err)
	return client
}

type statsRequest struct {
	NodeID int64 `json:"node_id"`
}

type statsReply struct {
	CPU float64 `json:"cpu"`
	Mem float64 `json:"mem"`
}

func TestRequestReply(t *testing.T) {
	t.Run("With a request answered", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)
		defer brokerClient.Close()

		service, err := NewService(&ServiceConfig{Client: brokerClient}, WithServiceLogger(log.DiscardLogger))
		require.NoError(t, err)
		service.Register("get_node_system_stats", Typed(func(_ context.Context, request statsRequest) (any, error) {
			assert.EqualValues(t, 7, request.NodeID)
			return statsReply{CPU: 0.42, Mem: 0.17}, nil
		}))
		require.NoError(t, service.Start(ctx))

		client, err := NewClient(&ClientConfig{Client: brokerClient}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)

		data, err := client.Request(ctx, "get_node_system_stats", statsRequest{NodeID: 7})
		require.NoError(t, err)

		reply := new(statsReply)
		require.NoError(t, json.Unmarshal(data, reply))
		assert.InDelta(t, 0.42, reply.CPU, 1e-9)

		require.NoError(t, service.Stop(ctx))
	})
	t.Run("With the built-in health check", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)
		defer brokerClient.Close()

		service, err := NewService(&ServiceConfig{Client: brokerClient}, WithServiceLogger(log.DiscardLogger))
		require.NoError(t, err)
		require.NoError(t, service.Start(ctx))

		client, err := NewClient(&ClientConfig{Client: brokerClient}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)

		require.NoError(t, client.HealthCheck(ctx))
		require.NoError(t, service.Stop(ctx))
	})
	t.Run("With an unknown action", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)
		defer brokerClient.Close()

		service, err := NewService(&ServiceConfig{Client: brokerClient}, WithServiceLogger(log.DiscardLogger))
		require.NoError(t, err)
		require.NoError(t, service.Start(ctx))

		client, err := NewClient(&ClientConfig{Client: brokerClient}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = client.Request(ctx, "no_such_action", nil)
		remoteErr := new(gerrors.RemoteError)
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, 404, remoteErr.Code())
		assert.Contains(t, remoteErr.Message(), "no_such_action")

		require.NoError(t, service.Stop(ctx))
	})
	t.Run("With a handler returning a remote error", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)
		defer brokerClient.Close()

		service, err := NewService(&ServiceConfig{Client: brokerClient}, WithServiceLogger(log.DiscardLogger))
		require.NoError(t, err)
		service.Register("update_user", Typed(func(_ context.Context, _ statsRequest) (any, error) {
			return nil, gerrors.NewRemoteError(422, "user has no inbounds")
		}))
		require.NoError(t, service.Start(ctx))

		client, err := NewClient(&ClientConfig{Client: brokerClient}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = client.Request(ctx, "update_user", statsRequest{})
		remoteErr := new(gerrors.RemoteError)
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, 422, remoteErr.Code())
		assert.Equal(t, "user has no inbounds", remoteErr.Message())

		require.NoError(t, service.Stop(ctx))
	})
	t.Run("With a handler returning a plain error", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)
		defer brokerClient.Close()

		service, err := NewService(&ServiceConfig{Client: brokerClient}, WithServiceLogger(log.DiscardLogger))
		require.NoError(t, err)
		service.Register("update_core", func(context.Context, json.RawMessage) (any, error) {
			return nil, assert.AnError
		})
		require.NoError(t, service.Start(ctx))

		client, err := NewClient(&ClientConfig{Client: brokerClient}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = client.Request(ctx, "update_core", nil)
		remoteErr := new(gerrors.RemoteError)
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, 500, remoteErr.Code())

		require.NoError(t, service.Stop(ctx))
	})
	t.Run("With a panicking handler the requester still gets a reply", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)
		defer brokerClient.Close()

		service, err := NewService(&ServiceConfig{Client: brokerClient}, WithServiceLogger(log.DiscardLogger))
		require.NoError(t, err)
		service.Register("connect_node", func(context.Context, json.RawMessage) (any, error) {
			panic("backend gone")
		})
		require.NoError(t, service.Start(ctx))

		client, err := NewClient(&ClientConfig{Client: brokerClient}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = client.Request(ctx, "connect_node", nil)
		remoteErr := new(gerrors.RemoteError)
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, 500, remoteErr.Code())
		assert.Contains(t, remoteErr.Message(), "panic")

		// the service survived the panic
		require.NoError(t, client.HealthCheck(ctx))
		require.NoError(t, service.Stop(ctx))
	})
	t.Run("With a timeout distinguished from a remote error", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)
		defer brokerClient.Close()

		service, err := NewService(&ServiceConfig{Client: brokerClient}, WithServiceLogger(log.DiscardLogger))
		require.NoError(t, err)
		service.Register("slow", func(context.Context, json.RawMessage) (any, error) {
			time.Sleep(500 * time.Millisecond)
			return nil, nil
		})
		require.NoError(t, service.Start(ctx))

		client, err := NewClient(&ClientConfig{Client: brokerClient, Timeout: 100 * time.Millisecond}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = client.Request(ctx, "slow", nil)
		require.ErrorIs(t, err, gerrors.ErrRequestTimeout)
		remoteErr := new(gerrors.RemoteError)
		assert.False(t, errors.As(err, &remoteErr))

		// the slow handler occupies one slot, health checks still get through
		require.NoError(t, client.HealthCheck(ctx))

		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		require.NoError(t, service.Stop(stopCtx))
	})
	t.Run("With no responders", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)
		defer brokerClient.Close()

		client, err := NewClient(&ClientConfig{Client: brokerClient, Subject: "gofleet.nodes.99.rpc"}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = client.Request(ctx, "health_check", nil)
		require.ErrorIs(t, err, gerrors.ErrNoResponders)
	})
	t.Run("With requests queued beyond the concurrency cap", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)
		defer brokerClient.Close()

		service, err := NewService(&ServiceConfig{Client: brokerClient, Concurrency: 1}, WithServiceLogger(log.DiscardLogger))
		require.NoError(t, err)

		running := atomic.NewInt32(0)
		peak := atomic.NewInt32(0)
		service.Register("work", func(context.Context, json.RawMessage) (any, error) {
			now := running.Inc()
			if now > peak.Load() {
				peak.Store(now)
			}
			time.Sleep(50 * time.Millisecond)
			running.Dec()
			return nil, nil
		})
		require.NoError(t, service.Start(ctx))

		client, err := NewClient(&ClientConfig{Client: brokerClient, Timeout: 3 * time.Second}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)

		errs := make(chan error, 4)
		for i := 0; i < 4; i++ {
			go func() {
				_, err := client.Request(ctx, "work", nil)
				errs <- err
			}()
		}
		for i := 0; i < 4; i++ {
			require.NoError(t, <-errs)
		}
		assert.LessOrEqual(t, peak.Load(), int32(1))

		require.NoError(t, service.Stop(ctx))
	})
	t.Run("With a disabled broker the client fails fast", func(t *testing.T) {
		ctx := context.TODO()
		brokerClient, err := broker.Connect(&broker.Config{}, broker.WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		client, err := NewClient(&ClientConfig{Client: brokerClient}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = client.Request(ctx, "update_core", nil)
		require.ErrorIs(t, err, gerrors.ErrBrokerDisabled)
	})
	t.Run("With a closed broker connection", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)

		client, err := NewClient(&ClientConfig{Client: brokerClient}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)
		require.NoError(t, brokerClient.Close())

		_, err = client.Request(ctx, "health_check", nil)
		require.ErrorIs(t, err, gerrors.ErrBrokerNotConnected)
	})
	t.Run("With a payload of the wrong shape", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)
		defer brokerClient.Close()

		service, err := NewService(&ServiceConfig{Client: brokerClient}, WithServiceLogger(log.DiscardLogger))
		require.NoError(t, err)
		service.Register("get_node_system_stats", Typed(func(_ context.Context, request statsRequest) (any, error) {
			return statsReply{}, nil
		}))
		require.NoError(t, service.Start(ctx))

		client, err := NewClient(&ClientConfig{Client: brokerClient}, WithClientLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = client.Request(ctx, "get_node_system_stats", "not an object")
		remoteErr := new(gerrors.RemoteError)
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, 400, remoteErr.Code())

		require.NoError(t, service.Stop(ctx))
	})
	t.Run("With lifecycle edge cases", func(t *testing.T) {
		ctx := context.TODO()
		serv := startNatsServer(t)
		defer serv.Shutdown()
		brokerClient := testClient(t, serv)
		defer brokerClient.Close()

		service, err := NewService(&ServiceConfig{Client: brokerClient}, WithServiceLogger(log.DiscardLogger))
		require.NoError(t, err)

		// stop before start
		require.NoError(t, service.Stop(ctx))
		require.NoError(t, service.Start(ctx))
		// start is idempotent
		require.NoError(t, service.Start(ctx))
		require.NoError(t, service.Stop(ctx))
	})
}
