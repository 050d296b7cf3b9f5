// Package flagx lets independent configuration layers share os.Args: each
// layer picks out only the flags it owns and parses them with its own
// FlagSet.
package flagx

import (
	"flag"
	"strings"
)

// configFlags are the names accepted for the JSON configuration file path.
var configFlags = []string{"-c", "-config", "--config"}

// FilterArgs keeps only the arguments that belong to allowedFlags.
//
// Both "-f value" and "-f=value" forms are recognized. A separate value is
// taken only when the next argument does not itself look like a flag.
// The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// ConfigPath returns the JSON configuration file named by -c, -config or
// --config in args, or "" if none is given.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(discard{})
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, configFlags))

	return path
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
