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

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/gofleet/broker"
	"github.com/tochemey/gofleet/commands"
	"github.com/tochemey/gofleet/internal/codec"
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

// startWorker builds and starts a worker service for the given node id.
func startWorker(t *testing.T, client *broker.Client, backend Backend, id int64) *Service {
	t.Helper()
	ctx := context.TODO()

	service, err := NewService(&Config{
		NodeID:  id,
		Client:  client,
		Backend: backend,
	}, WithLogger(log.DiscardLogger))
	require.NoError(t, err)
	require.NoError(t, service.Start(ctx))
	t.Cleanup(func() {
		_ = service.Stop(context.Background())
	})
	return service
}

// rpcClient builds the panel-side requester of the given node id.
func rpcClient(t *testing.T, client *broker.Client, id int64) *rpc.Client {
	t.Helper()

	requester, err := rpc.NewClient(&rpc.ClientConfig{
		Client:  client,
		Subject: commands.NodeRPCSubject(id),
		Timeout: time.Second,
	}, rpc.WithClientLogger(log.DiscardLogger))
	require.NoError(t, err)
	return requester
}

// publishCommand sends one fire-and-forget command to the given node.
func publishCommand(t *testing.T, client *broker.Client, id int64, action string, payload any) {
	t.Helper()

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = data
	}
	data, err := json.Marshal(&codec.Request{Action: action, Payload: raw})
	require.NoError(t, err)
	require.NoError(t, client.Conn().Publish(commands.NodeCommandSubject(id), data))
	require.NoError(t, client.Conn().Flush())
}

// testBackend is an in-memory proxy engine double. Log lines are fed by
// the test through emit so streaming assertions stay deterministic.
type testBackend struct {
	mu        sync.Mutex
	connected bool
	coreID    int64
	users     map[string]*commands.User

	failConnect bool
	tailErr     error
	feed        chan string
}

func newTestBackend() *testBackend {
	return &testBackend{
		users: make(map[string]*commands.User),
		feed:  make(chan string, 16),
	}
}

func (b *testBackend) Connect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failConnect {
		return errors.New("engine failed to boot")
	}
	b.connected = true
	return nil
}

func (b *testBackend) Disconnect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

func (b *testBackend) ApplyCore(_ context.Context, request *commands.ApplyCoreRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.coreID = request.CoreID
	return nil
}

func (b *testBackend) AddUser(_ context.Context, user *commands.User) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[user.Username] = user
	return nil
}

func (b *testBackend) RemoveUser(_ context.Context, username string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.users, username)
	return nil
}

func (b *testBackend) SyncUsers(_ context.Context, users []*commands.User) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = make(map[string]*commands.User, len(users))
	for _, user := range users {
		b.users[user.Username] = user
	}
	return nil
}

func (b *testBackend) SystemStats(context.Context) (*commands.SystemStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &commands.SystemStats{
		MemTotal:    8 << 30,
		MemUsed:     1 << 30,
		CPUCores:    4,
		CPUUsage:    12.5,
		OnlineUsers: len(b.users),
	}, nil
}

func (b *testBackend) UserStats(_ context.Context, username string) (*commands.UserStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, online := b.users[username]
	return &commands.UserStats{Username: username, Online: online}, nil
}

func (b *testBackend) TailLogs(ctx context.Context) (<-chan string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tailErr != nil {
		return nil, b.tailErr
	}

	out := make(chan string)
	feed := b.feed
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-feed:
				if !ok {
					return
				}
				select {
				case out <- line:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// emit feeds one log line into the backend's stream.
func (b *testBackend) emit(line string) {
	b.feed <- line
}

// endLogs closes the backend's log source, signaling EOF to any stream.
func (b *testBackend) endLogs() {
	close(b.feed)
}

func (b *testBackend) isConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *testBackend) currentCoreID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.coreID
}

func (b *testBackend) userCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.users)
}

func (b *testBackend) hasUser(username string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.users[username]
	return ok
}

var _ Backend = (*testBackend)(nil)
