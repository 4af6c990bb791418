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

package broker

import (
	"strings"
	"time"

	"github.com/tochemey/gofleet/internal/validation"
)

const defaultName = "gofleet"

// Config holds the settings of the worker's broker connection.
type Config struct {
	// URL is the broker server URL (e.g. nats://127.0.0.1:4222).
	// An empty URL disables the broker: the process then runs in
	// single-worker mode and cache mutations apply locally instead of
	// traveling through the bus.
	URL string
	// Name identifies this worker on the broker connection.
	Name string
	// ConnectTimeout sets the timeout for establishing the connection.
	ConnectTimeout time.Duration
	// ReconnectWait is the delay between reconnection attempts once the
	// connection is lost.
	ReconnectWait time.Duration
	// MaxReconnects caps reconnection attempts. Negative means unlimited.
	MaxReconnects int
}

var _ validation.Validator = (*Config)(nil)

// Enabled reports whether a broker URL is configured.
func (c *Config) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	return validation.New(validation.FailFast()).
		AddAssertion(c.ConnectTimeout > 0, "ConnectTimeout must be greater than 0").
		AddAssertion(c.ReconnectWait > 0, "ReconnectWait must be greater than 0").
		Validate()
}

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = defaultName
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
}
