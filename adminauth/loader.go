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

import "context"

// Loader reads admin records from the system of record. The cache never
// writes through it: mutations reach the relational store before they
// reach the cache.
type Loader interface {
	// ListAdmins returns every admin known to the system of record.
	ListAdmins(ctx context.Context) ([]*Record, error)
}

// LoaderFunc is an adapter allowing an ordinary function to serve as a Loader.
type LoaderFunc func(ctx context.Context) ([]*Record, error)

// enforce compilation error
var _ Loader = LoaderFunc(nil)

// ListAdmins implements Loader.
func (f LoaderFunc) ListAdmins(ctx context.Context) ([]*Record, error) {
	return f(ctx)
}
