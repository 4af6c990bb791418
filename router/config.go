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

package router

import (
	"strings"

	"github.com/tochemey/gofleet/broker"
	"github.com/tochemey/gofleet/internal/validation"
)

// DefaultSubject is the shared subject every worker of a deployment
// subscribes to for state synchronization events.
const DefaultSubject = "gofleet.workers.sync"

// Config holds the settings of the message router.
type Config struct {
	// Client is the worker's broker client. Required. A disabled client
	// turns the router into a no-op.
	Client *broker.Client
	// Subject is the shared worker-sync subject. Defaults to DefaultSubject.
	// All workers of a deployment must use the same subject.
	Subject string
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.
		New(validation.FailFast()).
		AddAssertion(c.Client != nil, "Client is required").
		AddValidator(validation.NewSubjectValidator(c.Subject)).
		Validate()
}

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.Subject) == "" {
		c.Subject = DefaultSubject
	}
}
