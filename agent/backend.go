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

	"github.com/tochemey/gofleet/commands"
)

// Backend is the node-local proxy engine boundary. The worker service
// translates wire requests into Backend calls and never touches the engine
// directly, so one service serves any engine able to implement this
// interface.
type Backend interface {
	// Connect starts the proxy engine with its current configuration.
	Connect(ctx context.Context) error
	// Disconnect stops the proxy engine.
	Disconnect(ctx context.Context) error
	// ApplyCore restarts the engine on the given configuration.
	ApplyCore(ctx context.Context, request *commands.ApplyCoreRequest) error
	// AddUser provisions one user on the running engine.
	AddUser(ctx context.Context, user *commands.User) error
	// RemoveUser deprovisions one user from the running engine.
	RemoveUser(ctx context.Context, username string) error
	// SyncUsers replaces the engine's whole user set.
	SyncUsers(ctx context.Context, users []*commands.User) error
	// SystemStats reports the node's system statistics.
	SystemStats(ctx context.Context) (*commands.SystemStats, error)
	// UserStats reports one user's online statistics.
	UserStats(ctx context.Context, username string) (*commands.UserStats, error)
	// TailLogs follows the engine's log output. The returned channel closes
	// when the source dries up or errors out, or when the context ends.
	TailLogs(ctx context.Context) (<-chan string, error)
}
