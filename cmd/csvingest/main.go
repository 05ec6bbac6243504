// Command csvingest infers schemas for CSV files and streams them as typed
// JSON records.
//
// Usage:
//
//	csvingest infer data.csv
//	csvingest stream --format format.yaml --chunking big.csv
//	csvingest split --max-chunk-size 52428800 big.csv
//	csvingest validate --format format.yaml
//
// Typed inference runs in a child process started as "csvingest worker".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
