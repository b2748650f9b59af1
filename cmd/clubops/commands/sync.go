package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"clubops-backend/lib/memberful"
	"clubops-backend/lib/osutil"
	"clubops-backend/services/avatars"
	"clubops-backend/services/club"
	"clubops-backend/services/jobs"
	"clubops-backend/services/onboarding"
	"clubops-backend/services/roles"
	"clubops-backend/services/subscriptions"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one of the sync jobs.",
}

var rolesDryRun *bool
var subscriptionsClearCache *bool

func init() {
	rolesDryRun = syncRolesCmd.Flags().Bool("dry-run", false, "Print the planned changes and apply nothing.")
	subscriptionsClearCache = syncSubscriptionsCmd.Flags().Bool("clear-cache", false, "Drop cached billing responses before syncing.")
	syncCmd.AddCommand(syncMembersCmd)
	syncCmd.AddCommand(syncRolesCmd)
	syncCmd.AddCommand(syncOnboardingCmd)
	syncCmd.AddCommand(syncJobsCmd)
	syncCmd.AddCommand(syncIntakeCmd)
	syncCmd.AddCommand(syncSubscriptionsCmd)
	syncCmd.AddCommand(syncAvatarsCmd)
	syncCmd.AddCommand(syncNamesCmd)
	rootCmd.AddCommand(syncCmd)
}

func clubMirror(cfg Config) (club.Mirror, func()) {
	store, db := openStore(cfg)
	mirror := club.NewMirror(store, discordClient(cfg), club.MirrorOptions{
		GuildID:        cfg.Discord.GuildID,
		IntroChannelID: cfg.Discord.IntroChannelID,
	})
	return mirror, func() { db.Close() }
}

func rolesService(cfg Config) (roles.Service, func()) {
	store, db := openStore(cfg)
	service := roles.NewService(store, discordClient(cfg), cfg.Discord.GuildID, roles.ServiceOptions{
		RoleDocsPath:   cfg.Roles.DocsPath,
		PartnerCoupons: stringSet(cfg.Roles.PartnerCoupons),
		PartnerNames:   cfg.Roles.PartnerNames,
		StudentNames:   cfg.Roles.StudentNames,
		SpeakerIDs:     stringSet(cfg.Roles.SpeakerIDs),
		MentorIDs:      stringSet(cfg.Roles.MentorIDs),
		FoundersCutoff: cfg.Roles.FoundersCutoff,
	})
	return service, func() { db.Close() }
}

func onboardingService(cfg Config) (onboarding.Service, func()) {
	store, db := openStore(cfg)

	isFeminine := func(string) bool { return false }
	if register, err := subscriptions.LoadNameRegister(cfg.FeminineNamesPath); err == nil {
		isFeminine = register.IsFeminine
	} else {
		slog.Warn("feminine names register not available, run `clubops sync names`", "err", err)
	}

	service := onboarding.NewService(store, discordClient(cfg), onboarding.ServiceOptions{
		GuildID:        cfg.Discord.GuildID,
		BotID:          cfg.Discord.BotID,
		CategoryID:     cfg.Discord.OnboardingCategoryID,
		IntroChannelID: cfg.Discord.IntroChannelID,
		Scheduled:      onboarding.DefaultScript,
		IsFeminine:     isFeminine,
	})
	return service, func() { db.Close() }
}

func jobsService(cfg Config) (jobs.Service, func()) {
	store, db := openStore(cfg)

	var seen *jobs.SeenSet
	closeRedis := func() {}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		closeRedis = func() { rdb.Close() }
		set := jobs.NewSeenSet(rdb, time.Hour*24*30)
		seen = &set
	}

	service := jobs.NewService(
		store,
		jobs.NewBoardClient(jobs.BoardClientOptions{}),
		jobs.DefaultStages(geocoder()),
		seen,
	)
	return service, func() {
		closeRedis()
		db.Close()
	}
}

func subscriptionsService(cfg Config) (subscriptions.Service, func()) {
	store, db := openStore(cfg)
	service := subscriptions.NewService(store, billingClient(cfg, db))
	return service, func() { db.Close() }
}

func avatarsService(cfg Config) (avatars.Service, func()) {
	store, db := openStore(cfg)
	service := avatars.NewService(store, discordClient(cfg), cfg.Discord.GuildID, cfg.AvatarsDir)
	return service, func() { db.Close() }
}

func refreshNames(ctx context.Context, cfg Config) error {
	register, err := subscriptions.ScrapeFeminineNames(ctx)
	if err != nil {
		return err
	}
	if err := register.SaveNames(cfg.FeminineNamesPath); err != nil {
		return err
	}
	slog.InfoContext(ctx, "feminine names register refreshed",
		"names", len(register.Names()), "path", cfg.FeminineNamesPath)
	return nil
}

func renderRolesPlan(plan roles.Plan) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Member", "Add", "Remove"})
	for _, changes := range plan.Changes {
		t.AppendRow(table.Row{changes.MemberID, changes.Add, changes.Remove})
	}
	for _, name := range append(plan.PartnerRoles.Create, plan.StudentRoles.Create...) {
		t.AppendRow(table.Row{"(role)", name, ""})
	}
	for _, role := range append(plan.PartnerRoles.Delete, plan.StudentRoles.Delete...) {
		t.AppendRow(table.Row{"(role)", "", role.Name})
	}
	for _, assignment := range plan.PartnerAssignments {
		t.AppendRow(table.Row{"(partner)", assignment.RoleName,
			fmt.Sprintf("%d members", len(assignment.MemberIDs))})
	}
	t.Render()
}

var syncMembersCmd = &cobra.Command{
	Use:   "members",
	Short: "Mirror guild members and recent messages into the local database.",
	Run: func(cmd *cobra.Command, args []string) {
		mirror, closeStore := clubMirror(readConfig())
		defer closeStore()

		if err := mirror.Sync(cmd.Context()); err != nil {
			osutil.Fatal("failed to mirror the guild", err)
		}
	},
}

var syncRolesCmd = &cobra.Command{
	Use:   "roles [--dry-run]",
	Short: "Reconcile the managed roles against the rule set.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		service, closeStore := rolesService(cfg)
		defer closeStore()

		if *rolesDryRun {
			plan, err := service.Plan(cmd.Context())
			if err != nil {
				osutil.Fatal("failed to plan roles sync", err)
			}
			renderRolesPlan(plan)
			return
		}
		if _, err := service.Sync(cmd.Context()); err != nil {
			osutil.Fatal("failed to sync roles", err)
		}
	},
}

var syncOnboardingCmd = &cobra.Command{
	Use:   "onboarding",
	Short: "Reconcile personal channels and replay the tips script.",
	Run: func(cmd *cobra.Command, args []string) {
		service, closeStore := onboardingService(readConfig())
		defer closeStore()

		if err := service.Sync(cmd.Context()); err != nil {
			osutil.Fatal("failed to sync onboarding channels", err)
		}
		if err := service.SyncIntros(cmd.Context()); err != nil {
			osutil.Fatal("failed to sync intros", err)
		}
	},
}

var syncJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Scrape the job boards and store normalized postings.",
	Run: func(cmd *cobra.Command, args []string) {
		service, closeStore := jobsService(readConfig())
		defer closeStore()

		if err := service.Sync(cmd.Context()); err != nil {
			osutil.Fatal("failed to sync jobs", err)
		}
	},
}

var syncIntakeCmd = &cobra.Command{
	Use:   "intake <export.csv>",
	Short: "Feed manually submitted job postings from a form export.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service, closeStore := jobsService(readConfig())
		defer closeStore()

		f, err := os.Open(args[0])
		if err != nil {
			osutil.Fatal("failed to open the intake export", err)
		}
		defer f.Close()
		records, err := memberful.ParseCSV(f)
		if err != nil {
			osutil.Fatal("failed to parse the intake export", err)
		}

		if err := service.SubmitIntake(cmd.Context(), records); err != nil {
			osutil.Fatal("failed to submit intake postings", err)
		}
	},
}

var syncSubscriptionsCmd = &cobra.Command{
	Use:   "subscriptions [--clear-cache]",
	Short: "Mirror billing activities and coupons into the club database.",
	Run: func(cmd *cobra.Command, args []string) {
		service, closeStore := subscriptionsService(readConfig())
		defer closeStore()

		if *subscriptionsClearCache {
			if err := service.ClearCache(cmd.Context()); err != nil {
				osutil.Fatal("failed to clear the billing cache", err)
			}
		}
		if err := service.Sync(cmd.Context()); err != nil {
			osutil.Fatal("failed to sync subscriptions", err)
		}
	},
}

var syncAvatarsCmd = &cobra.Command{
	Use:   "avatars",
	Short: "Download members' avatars.",
	Run: func(cmd *cobra.Command, args []string) {
		service, closeStore := avatarsService(readConfig())
		defer closeStore()

		if err := service.Sync(cmd.Context()); err != nil {
			osutil.Fatal("failed to sync avatars", err)
		}
	},
}

var syncNamesCmd = &cobra.Command{
	Use:   "names",
	Short: "Refresh the feminine names register.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := refreshNames(cmd.Context(), readConfig()); err != nil {
			osutil.Fatal("failed to refresh feminine names", err)
		}
	},
}
