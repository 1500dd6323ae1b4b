// Command sh-syntax-build builds the engine module: it compiles
// ./cmd/sh-syntax-wasm for wasip1 and links the process export into it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/un-ts/sh-syntax/internal/wasmlink"
)

var (
	output  string
	workDir string
)

func init() {
	flag.StringVar(&output, "o", "main.wasm", "output file")
	flag.StringVar(&workDir, "workdir", ".", "module directory to build in")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [package]\n", os.Args[0])
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	pkg := "./cmd/sh-syntax-wasm"
	if flag.NArg() > 0 {
		pkg = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := wasmlink.Build(ctx, workDir, pkg, output); err != nil {
		logger.Fatal("build failed", zap.String("package", pkg), zap.Error(err))
	}
	logger.Info("engine module written", zap.String("package", pkg), zap.String("output", output))
}
