// Package flagx picks individual flags out of an argument list without
// tripping over flags that belong to other parsers (cobra, go test).
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs keeps only the flags named in allowedFlags, together with their
// values. Both "-c conf.json" and "--config=conf.json" forms are recognised.
// The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

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

// ConfigPath returns the JSON config path given by -c / -config, or "".
func ConfigPath(args []string) string {
	return lookup(args, "config", "c")
}

// EnvFilePath returns the dotenv path given by -env-file, or "".
func EnvFilePath(args []string) string {
	return lookup(args, "env-file", "")
}

func lookup(args []string, long, short string) string {
	names := []string{"-" + long, "--" + long}
	if short != "" {
		names = append(names, "-"+short, "--"+short)
	}

	var value string
	fs := flag.NewFlagSet(long, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&value, long, "", "")
	if short != "" {
		fs.StringVar(&value, short, "", "")
	}
	_ = fs.Parse(FilterArgs(args, names))

	return value
}
