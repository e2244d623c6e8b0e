// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package packedtuple

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/packedtuple/internal/base"
	"github.com/cockroachdb/packedtuple/internal/crc"
)

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
var DefaultLogger = base.DefaultLogger

// HashStrategy selects how row hashes are computed. All strategies produce
// identical hashes.
type HashStrategy = crc.Strategy

// Hash strategies.
const (
	HashAuto     = crc.Auto
	HashPortable = crc.Portable
	HashNarrow   = crc.Narrow
	HashWide     = crc.Wide
)

// Options holds the optional parameters for planning a Layout.
type Options struct {
	// HashStrategy forces the CRC-32C implementation used to hash rows. The
	// default, HashAuto, picks the fastest implementation the CPU supports.
	HashStrategy HashStrategy

	// StrictDataSize makes NewLayout return ErrInvalidDataSize for
	// variable-width columns whose DataSize lies outside [MinVariableDataSize,
	// MaxVariableDataSize] instead of clamping it.
	StrictDataSize bool

	// Logger receives planning events, such as clamped data sizes. The
	// default logger uses the Go standard library log package.
	Logger Logger
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified. Returns the new options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger
	}
	return o
}

// Clone creates a shallow-copy of the supplied options.
func (o *Options) Clone() *Options {
	n := &Options{}
	if o != nil {
		*n = *o
	}
	return n
}

// Validate verifies that the options are mutually consistent.
func (o *Options) Validate() error {
	switch o.HashStrategy {
	case HashAuto, HashPortable, HashNarrow, HashWide:
	default:
		return errors.Newf("packedtuple: unknown hash strategy %d", errors.Safe(o.HashStrategy))
	}
	return nil
}

// String returns a serialized representation of the options. The Logger is
// not serialized.
func (o *Options) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "[Options]\n")
	fmt.Fprintf(&buf, "  hash_strategy=%s\n", o.HashStrategy)
	fmt.Fprintf(&buf, "  strict_data_size=%t\n", o.StrictDataSize)
	return buf.String()
}

// Parse parses the options from the specified string. Note that certain
// options cannot be parsed into populated fields. For example, the Logger is
// not serialized and is left untouched.
func (o *Options) Parse(s string) error {
	return parseOptions(s, func(section, key, value string) error {
		if section != "Options" {
			// Unknown sections are ignored so that newer option strings can be
			// read by older binaries.
			return nil
		}
		var err error
		switch key {
		case "hash_strategy":
			o.HashStrategy, err = crc.ParseStrategy(value)
		case "strict_data_size":
			o.StrictDataSize, err = strconv.ParseBool(value)
		default:
			return errors.Errorf("packedtuple: unknown option: %s.%s", errors.Safe(section), errors.Safe(key))
		}
		if err != nil {
			return errors.Wrapf(err, "packedtuple: invalid value for %s", errors.Safe(key))
		}
		return nil
	})
}

func parseOptions(s string, fn func(section, key, value string) error) error {
	var section string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] == ';' || line[0] == '#' {
			// Skip blank lines and comments.
			continue
		}
		n := len(line)
		if line[0] == '[' && line[n-1] == ']' {
			section = line[1 : n-1]
			continue
		}
		pos := strings.Index(line, "=")
		if pos < 0 {
			const maxLen = 50
			if len(line) > maxLen {
				line = line[:maxLen-3] + "..."
			}
			return base.CorruptionErrorf("invalid key=value syntax: %q", errors.Safe(line))
		}
		key := strings.TrimSpace(line[:pos])
		value := strings.TrimSpace(line[pos+1:])
		if err := fn(section, key, value); err != nil {
			return err
		}
	}
	return nil
}
