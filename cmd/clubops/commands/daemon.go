package commands

import (
	"context"
	"log/slog"

	"clubops-backend/lib/osutil"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(daemonCmd)
}

// syncRunners maps the schedule names accepted in the config to the
// actual sync entry points.
func syncRunners(cfg Config) map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"members": func(ctx context.Context) error {
			mirror, closeStore := clubMirror(cfg)
			defer closeStore()
			return mirror.Sync(ctx)
		},
		"roles": func(ctx context.Context) error {
			service, closeStore := rolesService(cfg)
			defer closeStore()
			_, err := service.Sync(ctx)
			return err
		},
		"onboarding": func(ctx context.Context) error {
			service, closeStore := onboardingService(cfg)
			defer closeStore()
			if err := service.Sync(ctx); err != nil {
				return err
			}
			return service.SyncIntros(ctx)
		},
		"jobs": func(ctx context.Context) error {
			service, closeStore := jobsService(cfg)
			defer closeStore()
			return service.Sync(ctx)
		},
		"subscriptions": func(ctx context.Context) error {
			service, closeStore := subscriptionsService(cfg)
			defer closeStore()
			return service.Sync(ctx)
		},
		"avatars": func(ctx context.Context) error {
			service, closeStore := avatarsService(cfg)
			defer closeStore()
			return service.Sync(ctx)
		},
		"names": func(ctx context.Context) error {
			return refreshNames(ctx, cfg)
		},
	}
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the syncs on the schedules from the config.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := readConfig()
		runners := syncRunners(cfg)

		scheduler := cron.New()
		for name, spec := range cfg.Schedules {
			runner, ok := runners[name]
			if !ok {
				slog.WarnContext(ctx, "unknown sync in schedules, skipping", "name", name)
				continue
			}
			name := name
			_, err := scheduler.AddFunc(spec, func() {
				slog.InfoContext(ctx, "scheduled sync starting", "name", name)
				if err := runner(ctx); err != nil {
					slog.ErrorContext(ctx, "scheduled sync failed", "name", name, "err", err)
				}
			})
			if err != nil {
				osutil.Fatal("invalid cron spec for "+name, err)
			}
			slog.InfoContext(ctx, "sync scheduled", "name", name, "spec", spec)
		}
		scheduler.Start()
		defer scheduler.Stop()

		// edits to the role docs take effect without waiting for the
		// next scheduled run
		if cfg.Roles.DocsPath != "" {
			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				osutil.Fatal("failed to create file watcher", err)
			}
			defer watcher.Close()
			if err := watcher.Add(cfg.Roles.DocsPath); err != nil {
				osutil.Fatal("failed to watch role docs", err)
			}

			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case event, ok := <-watcher.Events:
						if !ok {
							return
						}
						if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
							continue
						}
						slog.InfoContext(ctx, "role docs changed, resyncing roles")
						if err := runners["roles"](ctx); err != nil {
							slog.ErrorContext(ctx, "roles resync failed", "err", err)
						}
					case err, ok := <-watcher.Errors:
						if !ok {
							return
						}
						slog.ErrorContext(ctx, "file watcher error", "err", err)
					}
				}
			}()
		}

		slog.InfoContext(ctx, "daemon running", "schedules", len(cfg.Schedules))
		<-ctx.Done()
	},
}
