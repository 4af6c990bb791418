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

// Package core keeps every worker's in-memory map of proxy-engine
// configurations coherent. Mutations never touch the local cache directly
// when a broker is present: they are published as invalidation events and
// applied through the worker's own subscription, so the writer and every
// other worker run the exact same apply path.
package core

import (
	"encoding/json"
	"fmt"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/zeebo/xxh3"

	"github.com/tochemey/gofleet/internal/validation"
)

// DefaultCoreID identifies the permanent fallback configuration. Reads of
// an unknown core resolve to it and it can never be removed.
const DefaultCoreID int64 = 1

// Record is a proxy-engine configuration row as stored by the relational
// layer. Its JSON form rides inside sync events, so the field names are
// wire-stable.
type Record struct {
	// ID is the configuration's identifier. ID 1 is the permanent fallback.
	ID int64 `json:"id"`
	// Config is the raw proxy-engine configuration document.
	Config json.RawMessage `json:"config"`
	// ExcludeInboundTags lists inbound tags hidden from the panel.
	ExcludeInboundTags []string `json:"exclude_inbound_tags,omitempty"`
	// FallbackInboundTags lists the tags users land on when their own
	// inbound is gone.
	FallbackInboundTags []string `json:"fallback_inbound_tags,omitempty"`
}

// Inbound is one entry of the engine document's inbounds array. Port and
// Settings stay raw: the engine accepts numbers, ranges and structured
// objects there and the panel forwards them untouched.
type Inbound struct {
	Tag      string          `json:"tag"`
	Protocol string          `json:"protocol,omitempty"`
	Listen   string          `json:"listen,omitempty"`
	Port     json.RawMessage `json:"port,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// engineDocument is the slice of the engine configuration the panel reads.
type engineDocument struct {
	Inbounds []Inbound `json:"inbounds"`
}

// Core is a validated proxy-engine configuration: the record plus its
// parsed inbound list with excluded tags dropped. A Core is immutable once
// built.
type Core struct {
	record        *Record
	inbounds      []Inbound
	inboundsByTag map[string]Inbound
	excludeTags   goset.Set[string]
	fallbackTags  goset.Set[string]
	fingerprint   uint64
}

// ID returns the configuration identifier.
func (c *Core) ID() int64 {
	return c.record.ID
}

// Config returns the raw engine configuration document.
func (c *Core) Config() json.RawMessage {
	return c.record.Config
}

// Record returns the underlying record.
func (c *Core) Record() *Record {
	return c.record
}

// Inbounds returns the kept inbounds in document order.
func (c *Core) Inbounds() []Inbound {
	out := make([]Inbound, len(c.inbounds))
	copy(out, c.inbounds)
	return out
}

// InboundByTag returns the kept inbound carrying the given tag.
func (c *Core) InboundByTag(tag string) (Inbound, bool) {
	inbound, ok := c.inboundsByTag[tag]
	return inbound, ok
}

// FallbackTags returns the configured fallback inbound tags.
func (c *Core) FallbackTags() []string {
	return c.fallbackTags.ToSlice()
}

// Fingerprint returns a stable hash of the record, usable for cheap
// change detection.
func (c *Core) Fingerprint() uint64 {
	return c.fingerprint
}

// Validate parses and checks a record, returning the validated Core. It is
// a pure function, cheap enough to run on every worker for every
// invalidation event.
//
// Rules: the config document must carry a well-formed inbounds array whose
// tags are non-empty and unique; excluded tags are dropped from the kept
// list; every fallback tag must name a kept inbound.
func Validate(record *Record) (*Core, error) {
	if record == nil {
		return nil, fmt.Errorf("core: validate: record is nil")
	}
	if err := validation.
		New(validation.FailFast()).
		AddAssertion(record.ID > 0, "ID must be greater than 0").
		AddAssertion(len(record.Config) > 0, "Config is required").
		Validate(); err != nil {
		return nil, fmt.Errorf("core: validate id=(%d): %w", record.ID, err)
	}

	document := new(engineDocument)
	if err := json.Unmarshal(record.Config, document); err != nil {
		return nil, fmt.Errorf("core: validate id=(%d): parse config: %w", record.ID, err)
	}

	seen := goset.NewSet[string]()
	for _, inbound := range document.Inbounds {
		if inbound.Tag == "" {
			return nil, fmt.Errorf("core: validate id=(%d): inbound with empty tag", record.ID)
		}
		if !seen.Add(inbound.Tag) {
			return nil, fmt.Errorf("core: validate id=(%d): duplicate inbound tag=(%s)", record.ID, inbound.Tag)
		}
	}

	excludeTags := goset.NewSet[string](record.ExcludeInboundTags...)
	kept := make([]Inbound, 0, len(document.Inbounds))
	keptByTag := make(map[string]Inbound, len(document.Inbounds))
	for _, inbound := range document.Inbounds {
		if excludeTags.Contains(inbound.Tag) {
			continue
		}
		kept = append(kept, inbound)
		keptByTag[inbound.Tag] = inbound
	}

	fallbackTags := goset.NewSet[string](record.FallbackInboundTags...)
	for _, tag := range fallbackTags.ToSlice() {
		if _, ok := keptByTag[tag]; !ok {
			return nil, fmt.Errorf("core: validate id=(%d): fallback tag=(%s) does not exist", record.ID, tag)
		}
	}

	return &Core{
		record:        record,
		inbounds:      kept,
		inboundsByTag: keptByTag,
		excludeTags:   excludeTags,
		fallbackTags:  fallbackTags,
		fingerprint:   fingerprint(record),
	}, nil
}

func fingerprint(record *Record) uint64 {
	digest := xxh3.New()
	_, _ = digest.Write(record.Config)
	for _, tag := range record.ExcludeInboundTags {
		_, _ = digest.WriteString(tag)
	}
	for _, tag := range record.FallbackInboundTags {
		_, _ = digest.WriteString(tag)
	}
	return digest.Sum64()
}
