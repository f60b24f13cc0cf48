// Package cachekey derives stable cache keys from adapter request payloads.
//
// Two payloads that differ only in object field order, or only in volatile
// fields (request ids, debug flags, per-call metadata), hash to the same key.
// Payloads differing in any included field hash to different keys. The digest
// is SHA-1 over a canonical JSON encoding, so keys are stable across process
// restarts and across implementations.
package cachekey

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDerivation is returned (wrapped) when a payload cannot be hashed,
// for example when it contains values JSON cannot encode. Never retried.
var ErrDerivation = errors.New("cachekey: payload cannot be hashed")

// Mode selects how the payload is filtered before hashing.
type Mode int

const (
	// ModeInclude keeps only the allow-listed top-level fields, then drops
	// the configured ignored sub-paths within that selection.
	ModeInclude Mode = iota
	// ModeExclude keeps everything except the deny-listed top-level fields.
	ModeExclude
)

// Options configures which payload fields participate in the digest.
type Options struct {
	// Included is the top-level allow-list used by ModeInclude.
	Included []string
	// IgnoredPaths are dotted sub-paths removed from the included selection,
	// e.g. "data.resultPath". Only used by ModeInclude.
	IgnoredPaths []string
	// Excluded is the top-level deny-list used by ModeExclude.
	Excluded []string
}

// DefaultOptions returns the built-in field lists. The allow-list selects the
// adapter request data; the deny-list covers fields that vary per call without
// changing what is being requested.
func DefaultOptions() Options {
	return Options{
		Included: []string{"data"},
		IgnoredPaths: []string{
			"data.resultPath",
			"data.overrides",
			"data.tokenOverrides",
			"data.includes",
		},
		Excluded: []string{
			"id",
			"maxAge",
			"debug",
			"meta",
			"rateLimitMaxDepth",
			"metricsMeta",
		},
	}
}

// Merge returns a copy of o with extra field names appended to the
// allow-list and deny-list. Duplicates are dropped.
func (o Options) Merge(included []string, excluded []string) Options {
	out := Options{
		Included:     appendUnique(o.Included, included),
		IgnoredPaths: o.IgnoredPaths,
		Excluded:     appendUnique(o.Excluded, excluded),
	}
	return out
}

func appendUnique(base []string, extra []string) []string {
	out := make([]string, len(base))
	copy(out, base)
	for _, v := range extra {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen := false
		for _, existing := range out {
			if existing == v {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, v)
		}
	}
	return out
}

// Canonical derives the cache key for a payload. A nil or empty payload
// digests the canonical empty object rather than failing.
func Canonical(payload any, mode Mode, opts Options) (string, error) {
	val, err := normalize(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDerivation, err)
	}
	obj, isObject := val.(map[string]any)
	if isObject {
		switch mode {
		case ModeInclude:
			selected := make(map[string]any, len(opts.Included))
			for _, field := range opts.Included {
				if v, ok := obj[field]; ok {
					selected[field] = v
				}
			}
			for _, path := range opts.IgnoredPaths {
				dropPath(selected, strings.Split(path, "."))
			}
			val = selected
		case ModeExclude:
			for _, field := range opts.Excluded {
				delete(obj, field)
			}
			val = obj
		}
	}
	return digest(val)
}

// normalize converts an arbitrary payload into the generic structured-value
// model (maps, slices, scalars) via a JSON round trip. This makes the digest
// blind to the payload's concrete Go types: a struct and a map with the same
// shape normalize identically. Numbers keep their literal form.
func normalize(payload any) (any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	var val any
	if err := dec.Decode(&val); err != nil {
		return nil, err
	}
	if val == nil {
		return map[string]any{}, nil
	}
	return val, nil
}

// dropPath removes the value at a dotted path from a nested object tree.
// Missing intermediate segments are a no-op.
func dropPath(obj map[string]any, segments []string) {
	if len(segments) == 0 {
		return
	}
	if len(segments) == 1 {
		delete(obj, segments[0])
		return
	}
	child, ok := obj[segments[0]].(map[string]any)
	if !ok {
		return
	}
	dropPath(child, segments[1:])
}

// digest encodes the normalized value as canonical JSON and hashes it.
// encoding/json sorts map keys, which gives the order-independence the key
// contract requires; array order is preserved and significant.
func digest(val any) (string, error) {
	buf, err := json.Marshal(val)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDerivation, err)
	}
	sum := sha1.Sum(buf)
	return hex.EncodeToString(sum[:]), nil
}
