// Command unitscript is a demo CLI that compiles one or more unit scripts
// and runs them against a toy in-memory tower-defense world
// (internal/demohost), to exercise the engine end to end from the command
// line. It is demo scaffolding, not a real game host.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/unitscript/unitscript/internal/demohost"
	"github.com/unitscript/unitscript/pkg/cli"
	"github.com/unitscript/unitscript/pkg/compiler"
	"github.com/unitscript/unitscript/pkg/fileutil"
	"github.com/unitscript/unitscript/pkg/host"
	"github.com/unitscript/unitscript/pkg/logger"
	"github.com/unitscript/unitscript/pkg/opcode"
	"github.com/unitscript/unitscript/pkg/script"
	"github.com/unitscript/unitscript/pkg/vm"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	if err := logger.InitLogger(config.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	if config.ScriptPath == "" {
		cli.PrintHelp()
		return fmt.Errorf("no script path given")
	}

	scripts, err := loadScripts(config)
	if err != nil {
		return fmt.Errorf("failed to load scripts: %w", err)
	}
	log.Info("scripts loaded", "count", len(scripts))

	for _, s := range scripts {
		if err := runScript(config, log, s); err != nil {
			return fmt.Errorf("%s: %w", s.FileName, err)
		}
	}

	return nil
}

// loadScripts reads either the single entry file ParseArgs identified, or
// every .us file under ScriptPath when a directory was given. The entry
// file is resolved case-insensitively against the directory's actual
// entries, so "Tower.us" on the command line finds "tower.us" on disk.
func loadScripts(config *cli.Config) ([]script.Script, error) {
	if config.EntryFile != "" {
		path, err := fileutil.FindFileCaseInsensitive(config.ScriptPath, config.EntryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to locate %s: %w", config.EntryFile, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return []script.Script{{FileName: filepath.Base(path), Content: string(data), Size: int64(len(data))}}, nil
	}

	loader := script.NewLoader(config.ScriptPath)
	return loader.LoadAllScripts()
}

// runScript compiles and executes one script against a fresh toy world.
func runScript(config *cli.Config, log *slog.Logger, s script.Script) error {
	prog, diags := compiler.Compile(s.Content, host.BotTag, nil)
	if len(diags) != 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.Error())
			if d.Context != "" {
				fmt.Fprintln(os.Stderr, d.Context)
			}
		}
		return fmt.Errorf("compilation failed with %d diagnostic(s)", len(diags))
	}

	if config.Disasm {
		fmt.Fprintf(os.Stdout, "=== %s ===\n%s", s.FileName, opcode.Disassemble(prog))
	}

	world := demohost.NewWorld(log)
	machine := vm.New(prog, vm.WithLogger(log), vm.WithEnvironment(world), vm.WithBuiltins(world.Builtins()))
	machine.SetVar(host.NameSelf, world.Bot)
	machine.SetVar(host.NameCore, world.Core)

	start := time.Now()
	for machine.IsRunning() {
		if config.Timeout > 0 && time.Since(start) > config.Timeout {
			log.Warn("script timed out", "script", s.FileName, "timeout", config.Timeout)
			machine.Stop()
			break
		}
		if !machine.Run(config.Budget) {
			break
		}
	}

	state := machine.GetState()
	if state.Error != nil {
		log.Error("script faulted", "script", s.FileName, "kind", state.Error.Kind, "line", state.Error.Line, "message", state.Error.Message)
	}

	fmt.Fprintf(os.Stdout, "%s: %s\n", s.FileName, world.Describe())
	return nil
}
