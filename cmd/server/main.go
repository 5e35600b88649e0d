// cmd/server/main.go
package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
)

const (
	serviceName = "crop-disease-service"
	version     = "1.0.0"
)

func main() {
	root := newRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}
