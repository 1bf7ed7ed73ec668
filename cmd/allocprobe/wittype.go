package main

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-alloc/errors"
)

var witPrimitives = map[string]wit.Type{
	"bool":   wit.Bool{},
	"u8":     wit.U8{},
	"s8":     wit.S8{},
	"u16":    wit.U16{},
	"s16":    wit.S16{},
	"u32":    wit.U32{},
	"s32":    wit.S32{},
	"u64":    wit.U64{},
	"s64":    wit.S64{},
	"f32":    wit.F32{},
	"f64":    wit.F64{},
	"char":   wit.Char{},
	"string": wit.String{},
}

// parseWITType parses a WIT type expression without spaces: primitives and
// list<T>, option<T>, result<T,E>, result<_,E> and tuple<T,...>.
func parseWITType(s string) (wit.Type, error) {
	t, rest, err := parseType(s)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, badType(s, "trailing %q", rest)
	}
	return t, nil
}

func parseType(s string) (wit.Type, string, error) {
	end := strings.IndexAny(s, "<>,")
	if end < 0 {
		end = len(s)
	}
	head, rest := s[:end], s[end:]

	if t, ok := witPrimitives[head]; ok {
		return t, rest, nil
	}

	if !strings.HasPrefix(rest, "<") {
		return nil, "", badType(s, "unknown type %q", head)
	}
	args, rest, err := parseArgs(rest[1:])
	if err != nil {
		return nil, "", err
	}

	var kind wit.TypeDefKind
	switch {
	case head == "list" && len(args) == 1 && args[0] != nil:
		kind = &wit.List{Type: args[0]}
	case head == "option" && len(args) == 1 && args[0] != nil:
		kind = &wit.Option{Type: args[0]}
	case head == "result" && len(args) == 2:
		kind = &wit.Result{OK: args[0], Err: args[1]}
	case head == "tuple" && len(args) > 0:
		for _, a := range args {
			if a == nil {
				return nil, "", badType(s, "tuple element cannot be _")
			}
		}
		kind = &wit.Tuple{Types: args}
	default:
		return nil, "", badType(s, "bad arguments for %s", head)
	}
	return &wit.TypeDef{Kind: kind}, rest, nil
}

// parseArgs reads comma-separated types up to the closing '>'. "_" stands
// for an absent type.
func parseArgs(s string) ([]wit.Type, string, error) {
	var args []wit.Type
	for {
		var t wit.Type
		if strings.HasPrefix(s, "_") {
			s = s[1:]
		} else {
			var err error
			if t, s, err = parseType(s); err != nil {
				return nil, "", err
			}
		}
		args = append(args, t)

		switch {
		case strings.HasPrefix(s, ","):
			s = s[1:]
		case strings.HasPrefix(s, ">"):
			return args, s[1:], nil
		default:
			return nil, "", badType(s, "expected ',' or '>'")
		}
	}
}

func badType(s, format string, args ...any) error {
	return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("wit type %q: ", s)+fmt.Sprintf(format, args...))
}
