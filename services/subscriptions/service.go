package subscriptions

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"clubops-backend/lib/memberful"
	"clubops-backend/lib/telemetry"
	"clubops-backend/services/club"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("services/subscriptions")

const subscriptionsQuery = `
query subscriptions($cursor: String) {
	subscriptions(after: $cursor) {
		pageInfo {
			hasNextPage
			endCursor
		}
		nodes {
			active
			trialStartAt
			trialEndAt
			coupon {
				code
			}
			member {
				id
				email
				fullName
				discordUserId
			}
			orders {
				createdAt
				coupon {
					code
				}
			}
		}
	}
}`

type couponNode struct {
	Code string `json:"code"`
}

type subscriptionNode struct {
	Active       bool        `json:"active"`
	TrialStartAt int64       `json:"trialStartAt"`
	TrialEndAt   int64       `json:"trialEndAt"`
	Coupon       *couponNode `json:"coupon"`
	Member       struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		FullName      string `json:"fullName"`
		DiscordUserID string `json:"discordUserId"`
	} `json:"member"`
	Orders []struct {
		CreatedAt int64       `json:"createdAt"`
		Coupon    *couponNode `json:"coupon"`
	} `json:"orders"`
}

func subscriptionFromNode(node subscriptionNode) Subscription {
	sub := Subscription{
		AccountID: node.Member.ID,
		Email:     node.Member.Email,
		Name:      node.Member.FullName,
		DiscordID: node.Member.DiscordUserID,
	}
	if node.Coupon != nil {
		sub.Coupon = node.Coupon.Code
	}
	if node.TrialStartAt != 0 {
		sub.TrialStartAt = time.Unix(node.TrialStartAt, 0).UTC()
	}
	if node.TrialEndAt != 0 {
		sub.TrialEndAt = time.Unix(node.TrialEndAt, 0).UTC()
	}
	for _, order := range node.Orders {
		parsed := Order{CreatedAt: time.Unix(order.CreatedAt, 0).UTC()}
		if order.Coupon != nil {
			parsed.Coupon = order.Coupon.Code
		}
		sub.Orders = append(sub.Orders, parsed)
	}
	return sub
}

type Service struct {
	store   club.Store
	billing *memberful.Client
}

func NewService(store club.Store, billing *memberful.Client) Service {
	return Service{store: store, billing: billing}
}

// Subscriptions pulls every subscription from the billing platform.
func (s Service) Subscriptions(ctx context.Context) ([]Subscription, error) {
	ctx, span := tracer.Start(ctx, "Subscriptions")
	defer span.End()

	nodes, err := s.billing.Nodes(ctx, subscriptionsQuery, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query subscriptions")
		return nil, err
	}

	subs := make([]Subscription, 0, len(nodes))
	for _, raw := range nodes {
		var node subscriptionNode
		if err := json.Unmarshal(raw, &node); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode subscription node")
			return nil, err
		}
		subs = append(subs, subscriptionFromNode(node))
	}
	span.SetAttributes(attribute.Int("subscriptions", len(subs)))
	return subs, nil
}

// Sync expands subscriptions into activity rows and mirrors coupons
// onto the matching club members.
func (s Service) Sync(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Sync")
	defer span.End()

	subs, err := s.Subscriptions(ctx)
	if err != nil {
		return err
	}

	saved := 0
	for _, sub := range subs {
		for _, activity := range ActivitiesFromSubscription(sub) {
			if err := s.store.SaveActivity(ctx, activity); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to save activity")
				return err
			}
			saved++
		}

		if sub.DiscordID == "" || sub.Coupon == "" {
			continue
		}
		member, err := s.store.GetMember(ctx, sub.DiscordID)
		if err != nil {
			slog.DebugContext(ctx, "subscription has no club member",
				"discord_id", sub.DiscordID, "email", sub.Email)
			continue
		}
		if member.Coupon == sub.Coupon {
			continue
		}
		member.Coupon = sub.Coupon
		if err := s.store.UpsertMember(ctx, member); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to update member coupon")
			return err
		}
	}

	if err := s.syncSources(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to sync signup sources")
		return err
	}

	if err := s.billing.ExpireCache(ctx); err != nil {
		slog.WarnContext(ctx, "failed to expire the billing cache", "err", err)
	}

	slog.InfoContext(ctx, "subscriptions synced",
		"subscriptions", len(subs), "activities", saved)
	return nil
}

// syncSources mirrors the referrers and signup-origins exports, so
// reports can say where paying members come from.
func (s Service) syncSources(ctx context.Context) error {
	referrerRows, err := s.billing.DownloadCSV(ctx, map[string]string{"filter": "referrers"})
	if err != nil {
		return err
	}
	if err := s.store.SaveSubscriptionSources(ctx, club.SourceReferrer, ParseReferrers(referrerRows)); err != nil {
		return err
	}

	originRows, err := s.billing.DownloadCSV(ctx, map[string]string{"filter": "origins"})
	if err != nil {
		return err
	}
	return s.store.SaveSubscriptionSources(ctx, club.SourceOrigin, ParseOrigins(originRows))
}

// ClearCache drops every cached billing response, forcing the next
// sync to hit the API.
func (s Service) ClearCache(ctx context.Context) error {
	return s.billing.ClearCache(ctx)
}

// Cancellations downloads the cancellations export and attributes the
// rows to club members.
func (s Service) Cancellations(ctx context.Context) ([]Cancellation, error) {
	ctx, span := tracer.Start(ctx, "Cancellations")
	defer span.End()

	rows, err := s.billing.DownloadCSV(ctx, map[string]string{"filter": "cancellations"})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to download cancellations")
		return nil, err
	}
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list members")
		return nil, err
	}
	return MatchMembers(ParseCancellations(rows), members), nil
}
