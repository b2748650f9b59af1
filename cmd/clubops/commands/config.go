package commands

import (
	"database/sql"

	"clubops-backend/lib/configsqlite"
	"clubops-backend/lib/configutil"
	"clubops-backend/lib/discord"
	"clubops-backend/lib/fetchcache"
	"clubops-backend/lib/geo"
	"clubops-backend/lib/memberful"
	"clubops-backend/lib/osutil"
	"clubops-backend/services/club"
	"clubops-backend/services/subscriptions"
)

type DiscordConfig struct {
	BotToken string `json:"bot_token"`
	BotID    string `json:"bot_id"`
	GuildID  string `json:"guild_id"`
	// OnboardingCategoryID is the category the personal channels
	// live in.
	OnboardingCategoryID string `json:"onboarding_category_id"`
	IntroChannelID       string `json:"intro_channel_id"`
}

type RolesConfig struct {
	DocsPath       string   `json:"docs_path"`
	PartnerCoupons []string `json:"partner_coupons"`
	PartnerNames   []string `json:"partner_names"`
	StudentNames   []string `json:"student_names"`
	SpeakerIDs     []string `json:"speaker_ids"`
	MentorIDs      []string `json:"mentor_ids"`
	FoundersCutoff string   `json:"founders_cutoff"`
}

type Config struct {
	Database  configsqlite.Struct          `json:"database"`
	Discord   DiscordConfig                `json:"discord"`
	Memberful struct {
		APIKey string `json:"api_key"`
	} `json:"memberful"`
	Roles RolesConfig              `json:"roles"`
	Smtp  subscriptions.SmtpConfig `json:"smtp"`
	Redis struct {
		Addr string `json:"addr"`
	} `json:"redis"`
	AvatarsDir        string `json:"avatars_dir"`
	FeminineNamesPath string `json:"feminine_names_path"`
	// Schedules maps sync names to cron specs for daemon mode.
	Schedules map[string]string `json:"schedules"`
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("clubops.json5")
	if err != nil {
		osutil.Fatal("failed to read config", err)
	}
	if cfg.AvatarsDir == "" {
		cfg.AvatarsDir = "images/avatars"
	}
	if cfg.FeminineNamesPath == "" {
		cfg.FeminineNamesPath = "feminine_names.txt"
	}
	return cfg
}

func openStore(cfg Config) (club.Store, *sql.DB) {
	db, err := cfg.Database.OpenDB(club.Schema + "\n" + fetchcache.Schema)
	if err != nil {
		osutil.Fatal("failed to open database", err)
	}
	return club.NewStore(db), db
}

func discordClient(cfg Config) *discord.Client {
	return discord.NewClient(discord.ClientOptions{BotToken: cfg.Discord.BotToken})
}

func billingClient(cfg Config, db *sql.DB) *memberful.Client {
	return memberful.NewClient(memberful.ClientOptions{
		APIKey: cfg.Memberful.APIKey,
		Cache:  fetchcache.New(db),
	})
}

func geocoder() *geo.Client {
	return geo.NewClient(geo.ClientOptions{})
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[value] = true
	}
	return set
}
