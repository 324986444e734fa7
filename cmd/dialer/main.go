package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("dialer exited", "err", err)
		os.Exit(1)
	}
}
