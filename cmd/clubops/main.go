package main

import (
	"context"
	"os"

	"clubops-backend/cmd/clubops/commands"
	"clubops-backend/lib/osutil"
	"clubops-backend/lib/telemetry"
)

func main() {
	ctx := osutil.SignalContext()

	// telemetry is optional, the syncs work fine without a collector
	t, err := telemetry.SetupFromEnv(ctx, "clubops")
	if err == nil {
		defer t.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)
	} else if os.IsNotExist(err) {
		telemetry.InitSlog(false)
	} else {
		osutil.Fatal("failed to setup telemetry", err)
	}

	commands.ExecuteContext(ctx)
}
