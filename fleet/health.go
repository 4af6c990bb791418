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

// Health is the observed health classification of a node handle. It is
// owned by the handle and queried live: the manager never caches it.
type Health int32

const (
	// NotConnected marks a handle built but never connected.
	NotConnected Health = iota
	// Connecting marks a handle with a connection attempt in flight.
	Connecting
	// Healthy marks a handle whose last observed check succeeded.
	Healthy
	// Broken marks a handle whose last observed check failed.
	Broken
	// Invalid marks a retired handle awaiting teardown. Invalid is sticky:
	// no later observation resurrects the handle.
	Invalid
)

// String implements fmt.Stringer.
func (h Health) String() string {
	switch h {
	case NotConnected:
		return "not_connected"
	case Connecting:
		return "connecting"
	case Healthy:
		return "healthy"
	case Broken:
		return "broken"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}
