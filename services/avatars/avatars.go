// Package avatars mirrors members' profile pictures to local files so
// the rules and the website can tell who bothered to set one.
package avatars

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"clubops-backend/lib/discord"
	"clubops-backend/lib/telemetry"
	"clubops-backend/services/club"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = telemetry.Tracer("services/avatars")

// concurrency caps parallel avatar downloads, the CDN tolerates a few
// connections without rate limiting.
const concurrency = 8

type Service struct {
	store   club.Store
	chat    *discord.Client
	guildID string
	// dir is where the images land, typically images/avatars.
	dir string
}

func NewService(store club.Store, chat *discord.Client, guildID, dir string) Service {
	return Service{store: store, chat: chat, guildID: guildID, dir: dir}
}

func avatarPath(dir string, user discord.User) string {
	digest := sha256.Sum224([]byte(user.ID + ":" + user.Avatar))
	return filepath.Join(dir, hex.EncodeToString(digest[:])+".png")
}

// Sync downloads every member's current avatar. One failed member
// fails the run; a half-synced avatar set would silently skew the
// profile-completeness rules.
func (s Service) Sync(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Sync")
	defer span.End()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create avatars directory")
		return err
	}

	members, err := s.store.ListMembers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list members")
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, member := range members {
		member := member
		group.Go(func() error {
			return s.syncMember(ctx, member)
		})
	}
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "avatar sync failed")
		return err
	}
	span.SetAttributes(attribute.Int("members", len(members)))
	return nil
}

func (s Service) syncMember(ctx context.Context, member club.Member) error {
	guildMember, err := s.chat.GuildMember(ctx, s.guildID, member.ID)
	if err != nil {
		return fmt.Errorf("member %s: %w", member.ID, err)
	}

	if guildMember.User.Avatar == "" {
		if member.HasAvatar {
			slog.InfoContext(ctx, "member removed their avatar", "member", member.DisplayName)
			return s.store.SetMemberAvatar(ctx, member.ID, "")
		}
		return nil
	}

	path := avatarPath(s.dir, guildMember.User)
	if member.AvatarPath == path {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}

	image, err := s.chat.DownloadAvatar(ctx, guildMember.User)
	if err != nil {
		return fmt.Errorf("member %s: %w", member.ID, err)
	}
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return fmt.Errorf("member %s: %w", member.ID, err)
	}

	slog.InfoContext(ctx, "avatar downloaded", "member", member.DisplayName, "path", path)
	return s.store.SetMemberAvatar(ctx, member.ID, path)
}
