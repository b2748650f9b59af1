package subscriptions

import (
	"sort"
	"time"

	"clubops-backend/services/club"
)

// Activity types stored in the club mirror.
const (
	ActivityOrder        = "order"
	ActivityDeactivation = "deactivation"
	ActivityTrialStart   = "trial_start"
	ActivityTrialEnd     = "trial_end"
)

// activityTypes maps the billing platform's event names to the coarse
// types the reports work with. Unlisted events are ignored.
var activityTypes = map[string]string{
	"new_order":                ActivityOrder,
	"renewal":                  ActivityOrder,
	"gift_activated":           ActivityOrder,
	"subscription_deactivated": ActivityDeactivation,
	"subscription_deleted":     ActivityDeactivation,
	"order_suspended":          ActivityDeactivation,
}

// MapActivityType translates a raw billing event name. ok=false means
// the event carries no signal for the reports.
func MapActivityType(raw string) (string, bool) {
	mapped, ok := activityTypes[raw]
	return mapped, ok
}

type Order struct {
	CreatedAt time.Time
	Coupon    string
}

type Subscription struct {
	AccountID    string
	Email        string
	Name         string
	DiscordID    string
	Coupon       string
	TrialStartAt time.Time
	TrialEndAt   time.Time
	Orders       []Order
}

// ActivitiesFromSubscription expands one subscription record into the
// activity rows it implies: one order per payment, trial start and end
// when there was a trial. The newest order inherits the subscription's
// current coupon, older orders keep whatever coupon they were paid
// with.
func ActivitiesFromSubscription(sub Subscription) []club.Activity {
	var activities []club.Activity

	orders := append([]Order{}, sub.Orders...)
	sort.SliceStable(orders, func(a, b int) bool {
		return orders[a].CreatedAt.Before(orders[b].CreatedAt)
	})
	for i, order := range orders {
		coupon := order.Coupon
		if i == len(orders)-1 && sub.Coupon != "" {
			coupon = sub.Coupon
		}
		activities = append(activities, club.Activity{
			AccountID:  sub.AccountID,
			Type:       ActivityOrder,
			HappenedAt: order.CreatedAt,
			Coupon:     coupon,
		})
	}

	if !sub.TrialStartAt.IsZero() {
		activities = append(activities, club.Activity{
			AccountID:  sub.AccountID,
			Type:       ActivityTrialStart,
			HappenedAt: sub.TrialStartAt,
		})
	}
	if !sub.TrialEndAt.IsZero() {
		activities = append(activities, club.Activity{
			AccountID:  sub.AccountID,
			Type:       ActivityTrialEnd,
			HappenedAt: sub.TrialEndAt,
		})
	}
	return activities
}
