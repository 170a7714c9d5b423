// Package cli parses command-line arguments for the unitscript demo
// harness, reordering flags ahead of the positional script path so
// options and that path can appear in any order.
package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/unitscript/unitscript/pkg/script"
)

// DefaultBudget is the number of instructions a single Run call consumes when
// no -budget flag or UNITSCRIPT_BUDGET override is given, matching the
// "default 50 in production host" figure.
const DefaultBudget = 50

// Config holds the settings parsed from command-line arguments.
type Config struct {
	ScriptPath string        // a .us file or a directory to walk
	EntryFile  string        // set when ScriptPath pointed at a single file
	Budget     int           // instructions consumed per Run call
	Timeout    time.Duration // wall-clock safety net for the demo harness (0 = unlimited)
	LogLevel   string        // debug, info, warn, error
	Disasm     bool          // print disassembly before running
	ShowHelp   bool
}

// ParseArgs parses command-line arguments into a Config.
func ParseArgs(args []string) (*Config, error) {
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("unitscript", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec int
	fs.IntVar(&timeoutSec, "timeout", 0, "wall-clock timeout in seconds (0 = unlimited)")
	fs.IntVar(&timeoutSec, "t", 0, "wall-clock timeout in seconds (shorthand)")
	fs.IntVar(&config.Budget, "budget", 0, "instructions consumed per Run call")
	fs.IntVar(&config.Budget, "b", 0, "instructions consumed per Run call (shorthand)")
	fs.StringVar(&config.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&config.LogLevel, "l", "info", "log level (shorthand)")
	fs.BoolVar(&config.Disasm, "disasm", false, "print disassembly before running")
	fs.BoolVar(&config.ShowHelp, "help", false, "show this help message")
	fs.BoolVar(&config.ShowHelp, "h", false, "show this help message (shorthand)")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	if config.Budget == 0 {
		if budgetEnv := os.Getenv("UNITSCRIPT_BUDGET"); budgetEnv != "" {
			if b, err := strconv.Atoi(budgetEnv); err == nil && b > 0 {
				config.Budget = b
			}
		}
	}
	if config.Budget == 0 {
		config.Budget = DefaultBudget
	}

	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("UNITSCRIPT_LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	if config.Budget < 0 {
		return nil, fmt.Errorf("budget must be positive, got %d", config.Budget)
	}
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	if fs.NArg() > 0 {
		path := fs.Arg(0)
		if strings.EqualFold(filepath.Ext(path), script.ScriptExt) {
			config.ScriptPath = filepath.Dir(path)
			config.EntryFile = filepath.Base(path)
		} else {
			config.ScriptPath = path
		}
	}

	return config, nil
}

// reorderArgs moves flags before positional arguments so ParseArgs accepts
// either order, e.g. both "unitscript tower.us -b 10" and
// "unitscript -b 10 tower.us".
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				if arg != "-h" && arg != "--help" && arg != "-disasm" && arg != "--disasm" {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// PrintHelp writes usage information to stdout.
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `unitscript - bytecode engine demo CLI

Usage:
  unitscript [options] [script-path]

Arguments:
  script-path    A .us file or a directory of .us files (directory mode
                 compiles and runs every script found, case-insensitively)

Options:
  -b, --budget <n>        Instructions consumed per Run call (default: %d)
  -t, --timeout <seconds> Wall-clock timeout for the demo harness (default: unlimited)
  -l, --log-level <level> Log level: debug, info, warn, error (default: info)
  --disasm                 Print disassembly before running
  -h, --help               Show this help

Environment Variables:
  UNITSCRIPT_BUDGET       Instructions consumed per Run call
  UNITSCRIPT_LOG_LEVEL    Log level

Examples:
  unitscript tower.us              Run a single script
  unitscript ./scripts             Run every .us script in a directory
  unitscript --budget 10 tower.us  Run 10 instructions at a time
  unitscript --disasm tower.us     Print bytecode before running
`, DefaultBudget)
}
