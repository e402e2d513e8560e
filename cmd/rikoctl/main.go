package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/seamlik/riko"
	"github.com/seamlik/riko/engine"
	"github.com/seamlik/riko/runtime"
	"github.com/seamlik/riko/stream"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to boundary wasm module")
		funcName    = flag.String("func", "", "Function to call")
		argList     = flag.String("args", "", "Arguments, comma-separated (int, float, bool, @handle, anything else is a string)")
		streamFunc  = flag.String("stream", "", "Iterator constructor to drain")
		list        = flag.Bool("list", false, "List exported functions and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: rikoctl -wasm <file.wasm> -func name [-args a,b,c]")
		fmt.Fprintln(os.Stderr, "       rikoctl -wasm <file.wasm> -stream name [-args a,b,c]")
		fmt.Fprintln(os.Stderr, "       rikoctl -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       rikoctl -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *funcName, *streamFunc, *argList, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile, funcName, streamFunc, argList string, listOnly bool) error {
	ctx := context.Background()

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	b, err := engine.NewWazero(ctx, data)
	if err != nil {
		return fmt.Errorf("load boundary: %w", err)
	}
	rt := runtime.New(b)
	defer rt.Close()

	fmt.Printf("Boundary: %s\n", wasmFile)
	fmt.Printf("\nExported functions:\n")
	for _, e := range b.Exports() {
		fmt.Printf("  %s\n", formatExport(e))
	}

	if listOnly {
		return nil
	}

	args := parseArgs(argList)

	if streamFunc != "" {
		s, err := rt.Stream(ctx, streamFunc, args...)
		if err != nil {
			return fmt.Errorf("open stream %s: %w", streamFunc, err)
		}
		fmt.Printf("\nStreaming %s...\n", streamFunc)
		n := 0
		err = stream.Each[any](ctx, s, func(v any) error {
			fmt.Printf("  [%d] %v\n", n, v)
			n++
			return nil
		})
		if err != nil {
			return fmt.Errorf("stream %s: %w", streamFunc, err)
		}
		fmt.Printf("%d elements\n", n)
		return nil
	}

	if funcName == "" {
		fmt.Printf("\nNo function specified. Use -func or -stream to call one.\n")
		return nil
	}

	fmt.Printf("\nCalling %s(%s)...\n", funcName, argList)
	result, err := runtime.Call[any](ctx, rt, funcName, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("Result: %v\n", result)
	return nil
}

// parseArgs turns a comma-separated flag value into boundary arguments.
// Numbers and booleans cross as scalars, @N tokens as handles, everything
// else as a string encoded on the way over.
func parseArgs(argList string) []any {
	if argList == "" {
		return nil
	}

	var args []any
	for _, tok := range strings.Split(argList, ",") {
		args = append(args, parseArg(strings.TrimSpace(tok)))
	}
	return args
}

func parseArg(tok string) any {
	if strings.HasPrefix(tok, "@") {
		if h, err := strconv.ParseInt(tok[1:], 10, 64); err == nil {
			return riko.Handle(h)
		}
	}
	switch tok {
	case "true":
		return true
	case "false":
		return false
	}
	if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(tok, 64); err == nil {
		return v
	}
	return tok
}

func formatExport(e engine.Export) string {
	result := ""
	if len(e.Results) > 0 {
		result = " -> " + strings.Join(e.Results, ", ")
	}
	return e.Name + "(" + strings.Join(e.Params, ", ") + ")" + result
}
