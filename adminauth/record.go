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

package adminauth

import (
	"fmt"
	"strings"

	"github.com/tochemey/gofleet/internal/validation"
)

const (
	// StateBucket is the KV bucket holding the cache's durable state.
	StateBucket = "admin_auth_state"
	// keyPrefix prefixes the per-admin keys. Wire-stable.
	keyPrefix = "admin_auth."
	// indexKey lists every live username. Wire-stable.
	indexKey = "admin_auth._index"
)

// recordKey returns the KV key holding the record of the given admin.
func recordKey(username string) string {
	return keyPrefix + username
}

// Record is the authentication state of one panel administrator as read
// from the system of record. The field names below are wire-stable: they
// travel sync events and the KV store.
type Record struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	IsSudo       bool   `json:"is_sudo"`
}

var _ validation.Validator = (*Record)(nil)

// Validate implements validation.Validator.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("adminauth: validate: record is nil")
	}
	if err := validation.
		New(validation.FailFast()).
		AddAssertion(strings.TrimSpace(r.Username) != "", "Username is required").
		AddAssertion(!strings.ContainsAny(r.Username, " \t\r\n"), "Username must not contain whitespace").
		AddAssertion(r.PasswordHash != "", "PasswordHash is required").
		Validate(); err != nil {
		return fmt.Errorf("adminauth: validate username=(%s): %w", r.Username, err)
	}
	return nil
}
