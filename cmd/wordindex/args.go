package main

import (
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// joinOptionalValues lets a flag with an optional value take it from the
// next argument as well, so "--threads 3" and "-counts out.json" mean
// "--threads=3" and "--counts=out.json". Single-dash long names are
// accepted. It also reports which optional-value flags were left bare.
func joinOptionalValues(fs *pflag.FlagSet, args []string) ([]string, map[string]bool) {
	out := make([]string, 0, len(args))
	bare := make(map[string]bool)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i:]...), bare
		}
		name, hasValue, ok := splitFlag(arg)
		fl := fs.Lookup(name)
		if !ok || fl == nil {
			out = append(out, arg)
			continue
		}
		arg = "--" + strings.TrimLeft(arg, "-")
		if fl.NoOptDefVal != "" && fl.Value.Type() != "bool" {
			switch {
			case hasValue:
				delete(bare, name)
			case i+1 < len(args) && !looksLikeFlag(args[i+1]):
				arg += "=" + args[i+1]
				i++
				delete(bare, name)
			default:
				bare[name] = true
			}
		}
		out = append(out, arg)
	}
	return out, bare
}

func splitFlag(arg string) (name string, hasValue, ok bool) {
	if len(arg) < 2 || arg[0] != '-' {
		return "", false, false
	}
	name, _, hasValue = strings.Cut(strings.TrimLeft(arg, "-"), "=")
	return name, hasValue, name != ""
}

// looksLikeFlag treats negative numbers as values.
func looksLikeFlag(arg string) bool {
	if !strings.HasPrefix(arg, "-") {
		return false
	}
	_, err := strconv.Atoi(arg)
	return err != nil
}
