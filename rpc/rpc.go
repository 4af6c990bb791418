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

// Package rpc implements request/reply over the broker. A Client sends
// action-tagged requests to one well-known subject; a Service answers them
// from a registered handler table, one reply per request, no exceptions.
//
// A timed-out request and a request answered with an error are different
// failures: the first surfaces as errors.ErrRequestTimeout, the second as a
// *errors.RemoteError carrying the remote code and message.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	gerrors "github.com/tochemey/gofleet/errors"
)

// ActionHealthCheck is answered by every service without registration.
const ActionHealthCheck = "health_check"

// reply codes carried in the error reply envelope
const (
	codeBadPayload    = 400
	codeUnknownAction = 404
	codeInternal      = 500
)

// Handler serves one rpc action. The returned value is marshaled into the
// reply envelope; a returned error produces an error reply instead.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Typed adapts a handler taking a concrete request type. Each action gets
// its own schema; a payload that does not decode into T is answered with a
// bad-payload error reply and never reaches the handler.
func Typed[T any](handle func(ctx context.Context, request T) (any, error)) Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var request T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &request); err != nil {
				return nil, gerrors.NewRemoteError(codeBadPayload, fmt.Sprintf("invalid payload: %v", err))
			}
		}
		return handle(ctx, request)
	}
}
