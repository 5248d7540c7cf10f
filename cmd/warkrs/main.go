package main

import (
	"context"
	"os"

	"warkrs/cmd/warkrs/commands"
	"warkrs/lib/serviceutil"
	"warkrs/lib/telemetry"
)

func main() {
	ctx := context.Background()

	tel, err := telemetry.SetupFromEnv(ctx, "warkrs")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to initialize telemetry", err)
	}
	if err == nil {
		commands.OnExit(func() {
			_ = tel.Shutdown(ctx)
		})
	}

	commands.ExecuteContext(ctx)
}
