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

package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/tochemey/gofleet/broker"
	"github.com/tochemey/gofleet/commands"
	"github.com/tochemey/gofleet/log"
	"github.com/tochemey/gofleet/rpc"
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

// connectClient dials the embedded server.
func connectClient(t *testing.T, serv *natsserver.Server) *broker.Client {
	t.Helper()

	client, err := broker.Connect(&broker.Config{URL: serv.ClientURL()}, broker.WithLogger(log.DiscardLogger))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

// testNodeRecord builds a valid record for the given node id.
func testNodeRecord(id int64) *Record {
	return &Record{
		ID:      id,
		Name:    fmt.Sprintf("node-%d", id),
		Address: "10.0.0.7",
		Port:    62050,
		APIKey:  "secret",
	}
}

// newTestNode builds a handle with short timeouts and a quiet logger.
func newTestNode(t *testing.T, client *broker.Client, id int64) *Node {
	t.Helper()

	node, err := NewNode(testNodeRecord(id), client,
		WithNodeLogger(log.DiscardLogger),
		WithNodeRequestTimeout(time.Second))
	require.NoError(t, err)
	return node
}

// nodeIDs projects handles to their ids for order-free assertions.
func nodeIDs(nodes []*Node) []int64 {
	ids := make([]int64, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID())
	}
	return ids
}

// nodeService is a scripted node worker double serving one node's rpc
// subject.
type nodeService struct {
	service     *rpc.Service
	failConnect *atomic.Bool
	failUsers   *atomic.Bool
	disconnects *atomic.Int32
	users       chan *commands.User
	cores       chan int64
}

func startNodeService(t *testing.T, client *broker.Client, id int64) *nodeService {
	t.Helper()
	ctx := context.TODO()

	double := &nodeService{
		failConnect: atomic.NewBool(false),
		failUsers:   atomic.NewBool(false),
		disconnects: atomic.NewInt32(0),
		users:       make(chan *commands.User, 16),
		cores:       make(chan int64, 16),
	}

	service, err := rpc.NewService(
		&rpc.ServiceConfig{Client: client, Subject: commands.NodeRPCSubject(id)},
		rpc.WithServiceLogger(log.DiscardLogger))
	require.NoError(t, err)

	service.Register(commands.ConnectNode, func(context.Context, json.RawMessage) (any, error) {
		if double.failConnect.Load() {
			return nil, errors.New("engine failed to boot")
		}
		return nil, nil
	})
	service.Register(commands.DisconnectNode, func(context.Context, json.RawMessage) (any, error) {
		double.disconnects.Inc()
		return nil, nil
	})
	service.Register(commands.UpdateUser, rpc.Typed(func(_ context.Context, user *commands.User) (any, error) {
		if double.failUsers.Load() {
			return nil, errors.New("user rejected")
		}
		double.users <- user
		return nil, nil
	}))
	service.Register(commands.UpdateCore, rpc.Typed(func(_ context.Context, request *commands.ApplyCoreRequest) (any, error) {
		double.cores <- request.CoreID
		return nil, nil
	}))
	service.Register(commands.GetNodeSystemStats, func(context.Context, json.RawMessage) (any, error) {
		return &commands.SystemStats{
			MemTotal:    8 << 30,
			MemUsed:     1 << 30,
			CPUCores:    4,
			CPUUsage:    12.5,
			OnlineUsers: 3,
		}, nil
	})
	service.Register(commands.GetUserOnlineStats, rpc.Typed(func(_ context.Context, request *commands.UserStatsRequest) (any, error) {
		return &commands.UserStats{
			Username: request.Username,
			Online:   true,
			IPs:      map[string]int{"203.0.113.9": 2},
		}, nil
	}))
	service.Register(commands.StreamLogs, func(context.Context, json.RawMessage) (any, error) {
		return &commands.LogSession{
			ID:          "session-1",
			Subject:     commands.LogsSubject("session-1"),
			StopSubject: commands.LogsStopSubject("session-1"),
		}, nil
	})

	require.NoError(t, service.Start(ctx))
	t.Cleanup(func() {
		_ = service.Stop(context.Background())
	})

	double.service = service
	return double
}
