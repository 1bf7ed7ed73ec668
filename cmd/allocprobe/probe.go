package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	wasmalloc "github.com/wippyai/wasm-alloc"
	"github.com/wippyai/wasm-alloc/errors"
	"github.com/wippyai/wasm-alloc/witlayout"
)

// session erases the pointer type of a backend so commands can drive any of
// them.
type session interface {
	Alloc(l wasmalloc.Layout) (uint64, error)
	AllocZeroed(l wasmalloc.Layout) (uint64, error)
	Realloc(ptr uint64, oldLayout, newLayout wasmalloc.Layout) (uint64, error)
	Dealloc(ptr uint64, l wasmalloc.Layout)
	Close() error
}

type backend[P wasmalloc.Pointer, A wasmalloc.Allocator[P, A]] struct {
	alloc   A
	closeFn func() error
}

// newSession wraps inner, behind the abort adapter when abort is set.
func newSession[P wasmalloc.Pointer, A wasmalloc.Allocator[P, A]](inner A, abort bool, closeFn func() error) session {
	if abort {
		return &backend[P, *wasmalloc.Abort[P, A]]{alloc: wasmalloc.NewAbort[P](inner), closeFn: closeFn}
	}
	return &backend[P, A]{alloc: inner, closeFn: closeFn}
}

func (b *backend[P, A]) Alloc(l wasmalloc.Layout) (uint64, error) {
	p, err := b.alloc.Alloc(l)
	return uint64(p), err
}

func (b *backend[P, A]) AllocZeroed(l wasmalloc.Layout) (uint64, error) {
	p, err := b.alloc.AllocZeroed(l)
	return uint64(p), err
}

func (b *backend[P, A]) Realloc(ptr uint64, oldLayout, newLayout wasmalloc.Layout) (uint64, error) {
	p, err := b.alloc.Realloc(P(ptr), oldLayout, newLayout)
	return uint64(p), err
}

func (b *backend[P, A]) Dealloc(ptr uint64, l wasmalloc.Layout) {
	b.alloc.Dealloc(P(ptr), l)
}

func (b *backend[P, A]) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// probe executes commands against a session and tracks live blocks.
// Only tracked blocks with their exact layout may be released or resized.
type probe struct {
	s       session
	calc    *witlayout.Calculator
	live    map[uint64]wasmalloc.Layout
	results []uint64
}

func newProbe(s session) *probe {
	return &probe{
		s:    s,
		calc: witlayout.NewCalculator(),
		live: make(map[uint64]wasmalloc.Layout),
	}
}

const usage = `commands:
  alloc SIZE ALIGN
  zeroed SIZE ALIGN
  realloc PTR OLD NEW ALIGN
  dealloc PTR SIZE ALIGN
  alloc-type WIT-TYPE
  list
  help
numbers accept 0x prefixes; $N names the pointer returned by the Nth allocation
WIT types are written without spaces, e.g. tuple<u8,u64> or result<_,string>`

// exec runs one command line and returns its output.
func (p *probe) exec(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return "", nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "alloc", "zeroed":
		if err := arity(cmd, args, 2); err != nil {
			return "", err
		}
		l, err := p.layout(args[0], args[1])
		if err != nil {
			return "", err
		}
		var ptr uint64
		if cmd == "alloc" {
			ptr, err = p.s.Alloc(l)
		} else {
			ptr, err = p.s.AllocZeroed(l)
		}
		if err != nil {
			return "", err
		}
		return p.track(ptr, l), nil

	case "realloc":
		if err := arity(cmd, args, 4); err != nil {
			return "", err
		}
		ptr, err := p.number(args[0])
		if err != nil {
			return "", err
		}
		oldLayout, err := p.layout(args[1], args[3])
		if err != nil {
			return "", err
		}
		newLayout, err := p.layout(args[2], args[3])
		if err != nil {
			return "", err
		}
		if err := p.owned(ptr, oldLayout); err != nil {
			return "", err
		}
		np, err := p.s.Realloc(ptr, oldLayout, newLayout)
		if err != nil {
			return "", err
		}
		delete(p.live, ptr)
		return p.track(np, newLayout), nil

	case "dealloc":
		if err := arity(cmd, args, 3); err != nil {
			return "", err
		}
		ptr, err := p.number(args[0])
		if err != nil {
			return "", err
		}
		l, err := p.layout(args[1], args[2])
		if err != nil {
			return "", err
		}
		if err := p.owned(ptr, l); err != nil {
			return "", err
		}
		p.s.Dealloc(ptr, l)
		delete(p.live, ptr)
		return fmt.Sprintf("released %#x", ptr), nil

	case "alloc-type":
		if err := arity(cmd, args, 1); err != nil {
			return "", err
		}
		t, err := parseWITType(args[0])
		if err != nil {
			return "", err
		}
		l, err := p.calc.Layout(t)
		if err != nil {
			return "", err
		}
		ptr, err := p.s.Alloc(l)
		if err != nil {
			return "", err
		}
		return p.track(ptr, l), nil

	case "list":
		return p.list(), nil

	case "help":
		return usage, nil
	}
	return "", errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown command %q", cmd))
}

// run executes lines in order and stops at the first error.
func (p *probe) run(w io.Writer, lines []string) error {
	for i, line := range lines {
		out, err := p.exec(line)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, strings.TrimSpace(line), err)
		}
		if out != "" {
			fmt.Fprintln(w, out)
		}
	}
	return nil
}

func (p *probe) track(ptr uint64, l wasmalloc.Layout) string {
	p.live[ptr] = l
	p.results = append(p.results, ptr)
	return fmt.Sprintf("$%d = %#x (%s)", len(p.results)-1, ptr, l)
}

func (p *probe) list() string {
	if len(p.live) == 0 {
		return "no live blocks"
	}
	ptrs := make([]uint64, 0, len(p.live))
	var total uint64
	for ptr, l := range p.live {
		ptrs = append(ptrs, ptr)
		total += l.Size()
	}
	sort.Slice(ptrs, func(i, j int) bool { return ptrs[i] < ptrs[j] })

	var b strings.Builder
	for _, ptr := range ptrs {
		fmt.Fprintf(&b, "%#x  %s\n", ptr, p.live[ptr])
	}
	fmt.Fprintf(&b, "%d blocks, %d bytes", len(ptrs), total)
	return b.String()
}

func (p *probe) owned(ptr uint64, l wasmalloc.Layout) error {
	tracked, ok := p.live[ptr]
	if !ok {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("%#x is not a live block", ptr))
	}
	if tracked != l {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("%#x was allocated with %s, not %s", ptr, tracked, l))
	}
	return nil
}

func (p *probe) layout(size, align string) (wasmalloc.Layout, error) {
	s, err := p.number(size)
	if err != nil {
		return wasmalloc.Layout{}, err
	}
	a, err := p.number(align)
	if err != nil {
		return wasmalloc.Layout{}, err
	}
	return wasmalloc.NewLayout(s, a)
}

func (p *probe) number(s string) (uint64, error) {
	if ref, ok := strings.CutPrefix(s, "$"); ok {
		i, err := strconv.Atoi(ref)
		if err != nil || i < 0 || i >= len(p.results) {
			return 0, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("no result %s", s))
		}
		return p.results[i], nil
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, fmt.Sprintf("bad number %q", s))
	}
	return v, nil
}

func arity(cmd string, args []string, n int) error {
	if len(args) != n {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("%s takes %d arguments, got %d", cmd, n, len(args)))
	}
	return nil
}
