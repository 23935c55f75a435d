/*
 * main.go, part of trajslice
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

// Command trajslice imports trajectories into a chunked object store and
// exports selections of them.
//
//	trajslice [global flags] import -frames F -atoms A <id> <file|->
//	trajslice [global flags] export [-format F] [-o file] <id> [axis=expr ...]
//	trajslice [global flags] info <id>
//
// Axis expressions are 1-based lists such as 1-10,15 or 1:100:5. Raw byte
// ranges are requested with bytes=expr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/rmera/trajslice/convert"
	"github.com/rmera/trajslice/export"
	"github.com/rmera/trajslice/internal/config"
	"github.com/rmera/trajslice/internal/diag"
	"github.com/rmera/trajslice/store"
	"github.com/rmera/trajslice/traj/mdcrd"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitRequest = 2 //bad usage or bad query
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Environ())
	stop()
	os.Exit(code)
}

type env struct {
	cfg    config.Config
	log    *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: trajslice [flags] import|export|info ...")
	fmt.Fprintln(w, "Flags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// loadConfig merges the defaults, the config file, the environment and the
// global flags, in that order.
func loadConfig(path string, environ []string, flags config.Config) (config.Config, error) {
	cfg := config.Defaults()
	if path == "" {
		for _, kv := range environ {
			if v, ok := strings.CutPrefix(kv, config.EnvPrefix+"CONFIG="); ok {
				path = v
			}
		}
	}
	if path != "" {
		file, err := config.LoadJSON(path, nil)
		if err != nil {
			return cfg, err
		}
		cfg = config.Merge(cfg, file)
	}
	over, err := config.EnvOverlay(environ)
	if err != nil {
		return cfg, err
	}
	cfg = config.Merge(config.Merge(cfg, over), flags)
	return cfg, config.Validate(cfg)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, environ []string) int {
	fs := flag.NewFlagSet("trajslice", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags config.Config
	cfgPath := fs.String("config", "", "JSON configuration file")
	fs.StringVar(&flags.Store.Root, "root", "", "store directory")
	fs.StringVar(&flags.Logging.Level, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&flags.Logging.Format, "log-format", "", "log format: json or text")
	if err := fs.Parse(args); err != nil {
		return exitRequest
	}
	if fs.NArg() < 1 {
		usage(stderr, fs)
		return exitRequest
	}
	cfg, err := loadConfig(*cfgPath, environ, flags)
	if err != nil {
		fmt.Fprintf(stderr, "trajslice: configuration: %v\n", err)
		return exitRequest
	}
	e := &env{
		cfg:    cfg,
		log:    diag.New(stderr, cfg.Logging.Level, cfg.Logging.Format),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "import":
		err = e.importCmd(rest)
	case "export":
		err = e.exportCmd(ctx, rest)
	case "info":
		err = e.infoCmd(rest)
	default:
		fmt.Fprintf(stderr, "trajslice: unknown command %q\n", cmd)
		usage(stderr, fs)
		return exitRequest
	}
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errFlags) {
		return exitRequest
	}
	fmt.Fprintf(stderr, "trajslice %s: %v\n", cmd, err)
	var usageErr usageError
	if errors.As(err, &usageErr) || errors.Is(err, convert.ErrFormat) {
		return exitRequest
	}
	switch diag.Code(err) {
	case "bad_syntax", "zero_index", "conflict", "unsatisfiable":
		return exitRequest
	}
	return exitFailed
}

// errFlags is returned after the flag package reported a parse error.
var errFlags = errors.New("bad flags")

type usageError string

func (u usageError) Error() string { return string(u) }

func (e *env) openStore() (*store.Dir, error) {
	return store.NewDir(e.cfg.Store.Root)
}

func (e *env) importCmd(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	frames := fs.Uint64("frames", 0, "frames in the trajectory")
	atoms := fs.Uint64("atoms", 0, "atoms per frame")
	axes := fs.String("axes", "", "generic layout instead of a trajectory: name:length,... fastest first")
	bits := fs.Uint("bits", 32, "element size in bits, for -axes layouts")
	if err := fs.Parse(args); err != nil {
		return errFlags
	}
	if fs.NArg() != 2 {
		return usageError("usage: import [flags] <id> <file|->")
	}
	meta := map[string]string{}
	if *axes != "" {
		meta[export.MetaAxes] = *axes
		meta[export.MetaElementBits] = strconv.FormatUint(uint64(*bits), 10)
	} else {
		meta[export.MetaFrames] = strconv.FormatUint(*frames, 10)
		meta[export.MetaAtoms] = strconv.FormatUint(*atoms, 10)
	}
	layout, err := export.LayoutFromMeta(meta)
	if err != nil {
		return usageError(err.Error())
	}
	d, err := e.openStore()
	if err != nil {
		return err
	}
	var in io.Reader = e.stdin
	if name := fs.Arg(1); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	t := diag.Start(e.log, "import", "import", "object", fs.Arg(0))
	m, err := d.Put(fs.Arg(0), in, uint64(e.cfg.Store.ChunkSize), e.cfg.Store.Codec, meta)
	if err != nil {
		t.Fail(err)
		return err
	}
	if m.Length != layout.Bytes() {
		e.log.Warn("object length doesn't match its layout", "comp", "import", "object", m.ID, "length", m.Length, "layout_bytes", layout.Bytes())
	}
	t.Finish("imported", "length", m.Length, "chunks", m.Chunks(), "codec", m.Codec)
	return nil
}

func (e *env) infoCmd(args []string) error {
	if len(args) != 1 {
		return usageError("usage: info <id>")
	}
	d, err := e.openStore()
	if err != nil {
		return err
	}
	m, err := d.Manifest(args[0])
	if err != nil {
		return err
	}
	out := struct {
		store.Manifest
		Chunks uint64   `json:"chunks"`
		Axes   []string `json:"axes,omitempty"`
		Bits   uint32   `json:"element_bits,omitempty"`
	}{Manifest: m, Chunks: m.Chunks()}
	if l, err := export.LayoutFromMeta(m.Meta); err == nil {
		for _, a := range l.Axes {
			out.Axes = append(out.Axes, fmt.Sprintf("%s:%d", a.Name, a.Length))
		}
		out.Bits = l.ElementBits
	}
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// parseHisto reads lo:hi:bins.
func parseHisto(s string) (*export.Histogram, error) {
	p := strings.Split(s, ":")
	if len(p) != 3 {
		return nil, usageError("histogram must be lo:hi:bins")
	}
	lo, err1 := strconv.ParseFloat(p[0], 64)
	hi, err2 := strconv.ParseFloat(p[1], 64)
	n, err3 := strconv.Atoi(p[2])
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, usageError("histogram: " + err.Error())
	}
	return &export.Histogram{Lo: lo, Hi: hi, Bins: n}, nil
}

func (e *env) exporter(d *store.Dir) *export.Exporter {
	c := e.cfg
	E := &export.Exporter{
		Store:   d,
		Layouts: export.Manifests{Dir: d},
		Opts: export.Options{
			MaxSpan:     c.Reader.MaxSpan,
			ChunkSize:   c.Reader.ChunkSize,
			Compression: c.Output.Compression,
			MdcrdTitle:  c.Mdcrd.Title,
			SciPerLine:  c.Sci.PerLine,
			Log:         e.log,
		},
	}
	if c.Mdcrd.Kernel == "scalar" {
		E.Opts.MdcrdKernel = mdcrd.Scalar{}
	}
	if c.Converter.Path != "" {
		E.Opts.Converter = &convert.Converter{Path: c.Converter.Path, Formats: c.Converter.Formats, Log: e.log}
	}
	return E
}

func (e *env) exportCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	format := fs.String("format", "", "output format: "+strings.Join(export.Formats(), ", ")+" or conv:NAME")
	output := fs.String("o", "-", "output file")
	compress := fs.String("compress", "", "compress the output: zstd or gzip")
	histo := fs.String("histogram", "", "lo:hi:bins histogram per component, for stats")
	if err := fs.Parse(args); err != nil {
		return errFlags
	}
	if fs.NArg() < 1 {
		return usageError("usage: export [flags] <id> [axis=expr ...]")
	}
	req := export.Request{Object: fs.Arg(0), Query: map[string]string{}}
	for _, kv := range fs.Args()[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return usageError(fmt.Sprintf("selection %q is not axis=expr", kv))
		}
		if _, dup := req.Query[k]; dup {
			return usageError("axis " + k + " given twice")
		}
		req.Query[k] = v
	}
	if *format != "" {
		req.Query[export.FormatKey] = *format
	}
	d, err := e.openStore()
	if err != nil {
		return err
	}
	E := e.exporter(d)
	if *compress != "" {
		E.Opts.Compression = *compress
	}
	if *histo != "" {
		if E.Opts.Histogram, err = parseHisto(*histo); err != nil {
			return err
		}
	}
	var out io.Writer = e.stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		out = f
		defer func() {
			if err := f.Close(); err != nil {
				e.log.Error("closing output", "comp", "export", "file", *output, "err", err.Error())
			}
		}()
	}
	_, err = E.Export(ctx, req, out)
	return err
}
