// Command lox is the REPL and file-driver shell around the compiler and VM:
// it owns process exit codes, stdio wiring, and log configuration, and
// otherwise just feeds source strings to a single long-lived VM.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	easy "github.com/t-tomalak/logrus-easy-formatter"

	"loxvm/internal/vm"
)

const prompt = "> "

func main() {
	os.Exit(run())
}

func run() int {
	var trace, disassemble bool

	cmd := &cobra.Command{
		Use:           "lox [script]",
		Short:         "Compile and run Lox source",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 1 {
				return errors.New("usage: lox [script]")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "log each dispatched instruction and the stack")
	cmd.Flags().BoolVar(&disassemble, "disassemble", false, "log the compiled chunk before executing it")

	var exitCode int
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		log := newLogger(trace || disassemble)
		machine := vm.New(log, trace, disassemble)
		defer machine.Close()

		if len(args) == 1 {
			exitCode = runFile(machine, args[0])
			return nil
		}
		exitCode = runREPL(machine)
		return nil
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 64
	}
	return exitCode
}

// newLogger configures the logger that chunk.DisassembleAll and the VM's
// trace output write through. Debug level only unlocks when the caller asked
// for trace or disassembly; otherwise it stays silent on stdout.
func newLogger(debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&easy.Formatter{LogFormat: "%msg%\n"})
	if debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

func runFile(machine *vm.VM, path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not open file \"%s\".\n", path)
		return 74
	}

	switch machine.Interpret(string(source)) {
	case vm.InterpretCompileError:
		return 65
	case vm.InterpretRuntimeError:
		return 70
	default:
		return 0
	}
}

func runREPL(machine *vm.VM) int {
	rl, err := readline.NewEx(&readline.Config{Prompt: prompt})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 70
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return 0
			}
			fmt.Fprintln(os.Stderr, err)
			return 0
		}

		if line == "exit" {
			return 0
		}
		if line == "" {
			continue
		}

		machine.Interpret(line)
	}
}
