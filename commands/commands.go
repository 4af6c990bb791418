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

// Package commands is the shared vocabulary of the panel side and the node
// side: the action names, subject layouts and payload schemas traveling
// between fleet handles and node workers. Every action decodes exactly one
// schema; nothing on the wire is a free-form dictionary.
package commands

import (
	"encoding/json"
	"fmt"
)

// Request/reply actions answered on a node's rpc subject.
const (
	ConnectNode        = "connect_node"
	DisconnectNode     = "disconnect_node"
	UpdateUser         = "update_user"
	RemoveUser         = "remove_user"
	UpdateCore         = "update_core"
	GetNodeSystemStats = "get_node_system_stats"
	GetUserOnlineStats = "get_user_online_stats"
	StreamLogs         = "stream_logs"
)

// Fire-and-forget actions accepted on a node's command subject.
const (
	SyncUsers  = "sync_users"
	UpdateNode = "update_node"
)

// NodeRPCSubject returns the request/reply subject of the node worker with
// the given id.
func NodeRPCSubject(id int64) string {
	return fmt.Sprintf("gofleet.nodes.%d.rpc", id)
}

// NodeCommandSubject returns the fire-and-forget command subject of the
// node worker with the given id.
func NodeCommandSubject(id int64) string {
	return fmt.Sprintf("gofleet.nodes.%d.cmd", id)
}

// LogsSubject returns the data subject of the log streaming session with
// the given id.
func LogsSubject(session string) string {
	return "gofleet.logs." + session
}

// LogsStopSubject returns the stop subject of the log streaming session
// with the given id.
func LogsStopSubject(session string) string {
	return "gofleet.logs." + session + ".stop"
}

// User is the provisioning state of one proxy user as pushed to node
// workers.
type User struct {
	Username string   `json:"username"`
	Key      string   `json:"key"`
	Inbounds []string `json:"inbounds,omitempty"`
}

// RemoveUserRequest names the user to deprovision.
type RemoveUserRequest struct {
	Username string `json:"username"`
}

// SyncUsersCommand replaces a node's whole user set.
type SyncUsersCommand struct {
	Users []*User `json:"users"`
}

// ApplyCoreRequest carries the engine configuration a node must run. It
// serves both the awaited update_core request and the fire-and-forget
// update_node command.
type ApplyCoreRequest struct {
	CoreID int64           `json:"core_id"`
	Config json.RawMessage `json:"config"`
}

// UserStatsRequest names the user whose online statistics are requested.
type UserStatsRequest struct {
	Username string `json:"username"`
}

// SystemStats is a node worker's system statistics reply.
type SystemStats struct {
	MemTotal          uint64  `json:"mem_total"`
	MemUsed           uint64  `json:"mem_used"`
	CPUCores          int     `json:"cpu_cores"`
	CPUUsage          float64 `json:"cpu_usage"`
	OnlineUsers       int     `json:"online_users"`
	IncomingBandwidth uint64  `json:"incoming_bandwidth"`
	OutgoingBandwidth uint64  `json:"outgoing_bandwidth"`
}

// UserStats is a node worker's per-user online statistics reply.
type UserStats struct {
	Username string         `json:"username"`
	Online   bool           `json:"online"`
	IPs      map[string]int `json:"ips,omitempty"`
}

// LogSession is the reply to a stream_logs request: the freshly minted
// subject pair of one log streaming session. Lines arrive on Subject until
// the source dries up or something is published to StopSubject.
type LogSession struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	StopSubject string `json:"stop_subject"`
}
