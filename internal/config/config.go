/*
 * config.go, part of trajslice
 *
 * Copyright 2026 The trajslice authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License  as published by
 * the Free Software Foundation; either version 2.1 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 51 Franklin Street, Fifth Floor, Boston,
 * MA 02110-1301, USA.
 */

// Package config holds the settings of trajslice: built-in defaults, a JSON
// file, TRAJSLICE_* environment variables and command line flags, merged in
// that order.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rmera/trajslice/chunkread"
	"github.com/rmera/trajslice/store"
)

// Config is the whole configuration.
type Config struct {
	Store     Store     `json:"store"`
	Reader    Reader    `json:"reader"`
	Converter Converter `json:"converter"`
	Output    Output    `json:"output"`
	Logging   Logging   `json:"logging"`
	Mdcrd     Mdcrd     `json:"mdcrd"`
	Sci       Sci       `json:"sci"`
}

// Store locates the object store and sets how objects are imported.
type Store struct {
	Root      string `json:"root"`
	ChunkSize int    `json:"chunk_size"`
	Codec     string `json:"codec"` //per chunk: "", zst, gz or fl
}

// Reader tunes the ranged reads.
type Reader struct {
	MaxSpan   uint64 `json:"max_span"`
	ChunkSize int    `json:"chunk_size"`
}

// Converter is the external conversion program. Only the listed formats
// are ever passed to it.
type Converter struct {
	Path    string   `json:"path"`
	Formats []string `json:"formats"`
}

// Output sets the compression of the exported stream: "", zstd or gzip.
type Output struct {
	Compression string `json:"compression"`
}

// Logging sets the level (debug, info, warn, error) and the format (json or
// text) of the logs.
type Logging struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Mdcrd configures the mdcrd text encoder.
type Mdcrd struct {
	Title  string `json:"title"`
	Kernel string `json:"kernel"` //table or scalar
}

// Sci configures the scientific notation encoder. PerLine 0 writes no line
// breaks.
type Sci struct {
	PerLine int `json:"per_line"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Store:   Store{Root: "data", ChunkSize: store.DefaultChunkSize, Codec: store.Zstd},
		Reader:  Reader{MaxSpan: chunkread.DefaultMaxSpan, ChunkSize: chunkread.DefaultChunkSize},
		Logging: Logging{Level: "info", Format: "json"},
		Mdcrd:   Mdcrd{Kernel: "table"},
		Sci:     Sci{PerLine: 6},
	}
}

// LoadJSON reads a configuration from raw, or from the file at path if raw
// is empty. Unknown fields are an error.
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge returns base with every non-zero field of over replacing the one in
// base. Lists are replaced, not merged.
func Merge(base, over Config) Config {
	out := base
	setS := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	setS(&out.Store.Root, over.Store.Root)
	setS(&out.Store.Codec, over.Store.Codec)
	if over.Store.ChunkSize != 0 {
		out.Store.ChunkSize = over.Store.ChunkSize
	}
	if over.Reader.MaxSpan != 0 {
		out.Reader.MaxSpan = over.Reader.MaxSpan
	}
	if over.Reader.ChunkSize != 0 {
		out.Reader.ChunkSize = over.Reader.ChunkSize
	}
	setS(&out.Converter.Path, over.Converter.Path)
	if len(over.Converter.Formats) > 0 {
		out.Converter.Formats = append([]string(nil), over.Converter.Formats...)
	}
	setS(&out.Output.Compression, over.Output.Compression)
	setS(&out.Logging.Level, over.Logging.Level)
	setS(&out.Logging.Format, over.Logging.Format)
	setS(&out.Mdcrd.Title, over.Mdcrd.Title)
	setS(&out.Mdcrd.Kernel, over.Mdcrd.Kernel)
	if over.Sci.PerLine != 0 {
		out.Sci.PerLine = over.Sci.PerLine
	}
	return out
}

// EnvPrefix prefixes every environment variable EnvOverlay looks at.
const EnvPrefix = "TRAJSLICE_"

// EnvOverlay builds a configuration to merge from environ, a list of
// KEY=value strings as returned by os.Environ. Keys without the prefix are
// ignored, unknown keys with it are an error.
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		val = strings.TrimSpace(val)
		var err error
		switch strings.TrimPrefix(key, EnvPrefix) {
		case "CONFIG":
			//the config file itself, see the command
		case "STORE_ROOT":
			over.Store.Root = val
		case "STORE_CHUNK_SIZE":
			over.Store.ChunkSize, err = strconv.Atoi(val)
		case "STORE_CODEC":
			over.Store.Codec = val
		case "MAX_SPAN":
			over.Reader.MaxSpan, err = strconv.ParseUint(val, 10, 64)
		case "CHUNK_SIZE":
			over.Reader.ChunkSize, err = strconv.Atoi(val)
		case "CONVERTER":
			over.Converter.Path = val
		case "CONVERTER_FORMATS":
			over.Converter.Formats = splitComma(val)
		case "COMPRESSION":
			over.Output.Compression = val
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_FORMAT":
			over.Logging.Format = val
		case "MDCRD_TITLE":
			over.Mdcrd.Title = val
		case "MDCRD_KERNEL":
			over.Mdcrd.Kernel = val
		case "SCI_PER_LINE":
			over.Sci.PerLine, err = strconv.Atoi(val)
		default:
			return over, fmt.Errorf("unknown setting %s", key)
		}
		if err != nil {
			return over, fmt.Errorf("%s: %w", key, err)
		}
	}
	return over, nil
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks a merged configuration.
func Validate(c Config) error {
	var errs []error
	if c.Store.Root == "" {
		errs = append(errs, errors.New("store.root is empty"))
	}
	if c.Store.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("store.chunk_size must be positive, not %d", c.Store.ChunkSize))
	}
	switch c.Store.Codec {
	case store.Raw, store.Zstd, store.Gzip, store.Flate:
	default:
		errs = append(errs, fmt.Errorf("unknown store.codec %q", c.Store.Codec))
	}
	if c.Reader.MaxSpan == 0 || c.Reader.ChunkSize <= 0 {
		errs = append(errs, errors.New("reader.max_span and reader.chunk_size must be positive"))
	}
	for _, f := range c.Converter.Formats {
		if !validFormat(f) {
			errs = append(errs, fmt.Errorf("converter format %q is not a plain name", f))
		}
	}
	switch c.Output.Compression {
	case "", "zstd", "gzip":
	default:
		errs = append(errs, fmt.Errorf("unknown output.compression %q", c.Output.Compression))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}
	switch c.Mdcrd.Kernel {
	case "", "table", "scalar":
	default:
		errs = append(errs, fmt.Errorf("unknown mdcrd.kernel %q", c.Mdcrd.Kernel))
	}
	if strings.ContainsAny(c.Mdcrd.Title, "\r\n") {
		errs = append(errs, errors.New("mdcrd.title must be a single line"))
	}
	if c.Sci.PerLine < 0 {
		errs = append(errs, errors.New("sci.per_line can't be negative"))
	}
	return errors.Join(errs...)
}

// validFormat accepts names made of letters, digits, '-' and '_', so they
// are safe as arguments.
func validFormat(f string) bool {
	if f == "" || f[0] == '-' {
		return false
	}
	for _, r := range f {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
