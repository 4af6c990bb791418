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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrBrokerDisabled is returned when a broker-backed operation is attempted
	// on a client that was built without a broker URL.
	ErrBrokerDisabled = errors.New("broker is not enabled")

	// ErrBrokerNotConnected indicates that the broker connection has been lost or closed.
	ErrBrokerNotConnected = errors.New("broker is not connected")

	// ErrRequestTimeout indicates that a request timed out while waiting for a reply.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrNoResponders is returned when a request is sent on a subject no service is listening on.
	ErrNoResponders = errors.New("no responders available")

	// ErrCorruptSnapshot indicates that a persisted snapshot failed its integrity checks
	// and must be discarded in favor of a full reload.
	ErrCorruptSnapshot = errors.New("snapshot is corrupted")

	// ErrKeyNotFound is returned when the requested key does not exist in the store.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreClosed is returned when an operation is attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrDefaultCoreProtected is returned when attempting to remove the default core.
	// The default core is the universal fallback and must always exist.
	ErrDefaultCoreProtected = errors.New("default core cannot be removed")

	// ErrNodeNotFound indicates that the specified node is not registered with the fleet.
	ErrNodeNotFound = errors.New("node is not found")

	// ErrNodeStopped is returned when an operation is attempted on a retired node handle.
	ErrNodeStopped = errors.New("node handle is stopped")

	// ErrUnknownAction is returned when a request names an action no handler is registered for.
	ErrUnknownAction = errors.New("unknown action")

	// ErrPoolStopped is returned when a task is submitted to a stopped worker pool.
	ErrPoolStopped = errors.New("worker pool is stopped")

	// ErrManagerNotInitialized is returned when a cache manager is used before Initialize.
	ErrManagerNotInitialized = errors.New("manager is not initialized")
)

// RemoteError is the error a caller receives when the remote handler executed
// and reported a failure. It is distinct from ErrRequestTimeout: a timed-out
// request may or may not have been processed, a RemoteError definitely was.
type RemoteError struct {
	code    int
	message string
}

// enforce compilation error
var _ error = (*RemoteError)(nil)

// NewRemoteError creates an instance of RemoteError with the given wire code and message.
func NewRemoteError(code int, message string) *RemoteError {
	return &RemoteError{
		code:    code,
		message: message,
	}
}

// Code returns the wire-level error code reported by the remote handler.
func (e *RemoteError) Code() int {
	return e.code
}

// Message returns the error message reported by the remote handler.
func (e *RemoteError) Message() string {
	return e.message
}

// Error implements the standard error interface
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: code=%d message=%s", e.code, e.message)
}

// PanicError defines the panic error
// wrapping the underlying error
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(err error) *PanicError {
	return &PanicError{err}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

func (e *PanicError) Unwrap() error {
	return e.err
}
