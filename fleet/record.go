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
	"fmt"
	"strings"

	"github.com/tochemey/gofleet/core"
	"github.com/tochemey/gofleet/internal/tcp"
	"github.com/tochemey/gofleet/internal/validation"
)

// Record is one node of the fleet as stored in the system of record. The
// field names below are wire-stable.
type Record struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Address          string  `json:"address"`
	Port             int     `json:"port"`
	APIKey           string  `json:"api_key,omitempty"`
	CoreID           int64   `json:"core_id,omitempty"`
	UsageCoefficient float64 `json:"usage_coefficient,omitempty"`
}

// Sanitize normalizes the record in place: name and address are trimmed, a
// wildcard address (a node colocated with its panel in development setups)
// resolves to a routable interface address, a missing usage coefficient
// defaults to 1 and a missing core id to the default core.
func (r *Record) Sanitize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Address = strings.TrimSpace(r.Address)

	if r.Address == "0.0.0.0" || r.Address == "::" {
		host, err := tcp.NormalizeHost(r.Address)
		if err != nil {
			return fmt.Errorf("fleet: sanitize node=(%d): %w", r.ID, err)
		}
		r.Address = host
	}

	if r.UsageCoefficient <= 0 {
		r.UsageCoefficient = 1
	}
	if r.CoreID <= 0 {
		r.CoreID = core.DefaultCoreID
	}
	return nil
}

var _ validation.Validator = (*Record)(nil)

// Validate implements validation.Validator.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("fleet: validate: record is nil")
	}
	if err := validation.
		New(validation.FailFast()).
		AddAssertion(r.ID > 0, "ID must be greater than 0").
		AddAssertion(r.Name != "", "Name is required").
		AddValidator(validation.NewAddressValidator(r.Address, r.Port)).
		Validate(); err != nil {
		return fmt.Errorf("fleet: validate node=(%d): %w", r.ID, err)
	}
	return nil
}

// HostPort returns the node's dialable address.
func (r *Record) HostPort() string {
	return tcp.JoinHostPort(r.Address, r.Port)
}
