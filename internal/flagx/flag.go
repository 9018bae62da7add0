// Package flagx contains helpers for layered command-line parsing: a config
// file flag is read before the full flag set is parsed.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// LeadingFlags returns the prefix of args that holds flags, stopping at the
// first positional argument or at "--". Everything after that point belongs to
// the command (e.g. "store my-key") and is never treated as a flag.
//
// boolFlags names the flags that take no separate value (without dashes, e.g.
// "path-style"). Any other flag given as "-name value" consumes the next
// argument.
func LeadingFlags(args []string, boolFlags ...string) []string {
	isBool := make(map[string]struct{}, len(boolFlags))
	for _, f := range boolFlags {
		isBool[f] = struct{}{}
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" and "-" end flag parsing, the same way package flag does
		if arg == "--" || arg == "-" || !strings.HasPrefix(arg, "-") {
			return args[:i]
		}

		// "-name=value" carries its own value
		if strings.Contains(arg, "=") {
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if _, ok := isBool[name]; ok {
			continue
		}

		// value flag: skip its value
		if i+1 < len(args) {
			i++
		}
	}

	return args
}

// FilterArgs returns a slice of command-line arguments that only contains
// the allowed flags (and their values) specified in allowedFlags.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      --config=conf.json
//
// A separate value is only taken when it does not itself look like a flag.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	// never nil, so callers can pass it straight to FlagSet.Parse
	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// JsonConfigFlags extracts the config file path given with -c or -config
// from the flag part of args. Arguments after the command are ignored, so
// "store -c" stores a document named "-c". It returns "" when no config file
// is named.
func JsonConfigFlags(args []string, boolFlags ...string) string {
	var config string

	filtered := FilterArgs(LeadingFlags(args, boolFlags...), []string{"-c", "-config", "--c", "--config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(filtered)

	return config
}
