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

package validation

import (
	"fmt"
	"net"
	"strings"
)

// AddressValidator helps validate a node address made of a host and a port.
type AddressValidator struct {
	host string
	port int
}

// making sure the given struct implements the given interface
var _ Validator = (*AddressValidator)(nil)

// NewAddressValidator creates an instance of AddressValidator
func NewAddressValidator(host string, port int) *AddressValidator {
	return &AddressValidator{host: host, port: port}
}

// Validate implements validation.Validator.
func (v *AddressValidator) Validate() error {
	host := strings.TrimSpace(v.host)
	if host == "" {
		return fmt.Errorf("invalid address=(%s:%d): host is required", v.host, v.port)
	}

	// a host is either an IP literal or a hostname
	if ip := net.ParseIP(host); ip == nil {
		if strings.ContainsAny(host, " /?#@") {
			return fmt.Errorf("invalid address=(%s:%d): malformed host", v.host, v.port)
		}
	}

	if v.port < 1 || v.port > 65535 {
		return fmt.Errorf("invalid address=(%s:%d): port out of range", v.host, v.port)
	}

	return nil
}
