package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"horajudaica-backend/internal/subscription/domain"
	"horajudaica-backend/internal/subscription/repository"
	"horajudaica-backend/pkg/config"
	"horajudaica-backend/pkg/onesignal"
)

// subscriptionCoordinator implements SubscriptionCoordinator
type subscriptionCoordinator struct {
	users     repository.UserRepository
	subs      repository.SubscriptionRepository
	directory Directory
	calendar  Calendar

	templateID      string
	windowStartHour int
	windowEndHour   int
	loc             *time.Location

	now func() time.Time
}

// NewSubscriptionCoordinator creates a new instance of subscriptionCoordinator.
// loc is the service's reference timezone for the send window and the
// "today" lookup.
func NewSubscriptionCoordinator(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	directory Directory,
	calendar Calendar,
	cfg *config.Config,
	loc *time.Location,
) SubscriptionCoordinator {
	return &subscriptionCoordinator{
		users:           users,
		subs:            subs,
		directory:       directory,
		calendar:        calendar,
		templateID:      cfg.OneSignalTemplateID,
		windowStartHour: cfg.SendWindowStartHour,
		windowEndHour:   cfg.SendWindowEndHour,
		loc:             loc,
		now:             time.Now,
	}
}

// Subscribe evaluates three mutually exclusive branches in order: unknown
// email, known email without this topic, and cancelled subscription for this
// topic. An active subscription is a conflict.
func (u *subscriptionCoordinator) Subscribe(ctx context.Context, req SubscribeRequest) error {
	user, err := u.users.FindByEmail(req.Email)
	if err != nil {
		return fmt.Errorf("find user by email: %w", err)
	}

	if user == nil {
		created, existing, err := u.createUser(req.Email)
		if err != nil {
			return err
		}
		if created != nil {
			return u.subscribeNewUser(ctx, created, req)
		}
		// Lost a signup race; continue as an existing user.
		user = existing
	}

	sub := user.SubscriptionOf(req.Type)
	switch {
	case sub == nil:
		return u.subscribeNewTopic(ctx, user, req)
	case sub.Cancelled():
		return u.resubscribe(ctx, user, sub, req)
	default:
		return ErrAlreadySubscribed
	}
}

// createUser inserts the user, converging with a concurrent signup: on a
// duplicate-email violation it re-reads and returns the existing record
// instead of failing.
func (u *subscriptionCoordinator) createUser(email string) (created, existing *domain.User, err error) {
	user := &domain.User{Email: email}
	if err := u.users.Create(user); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, fmt.Errorf("create user: %w", err)
		}
		log.Printf("[Coordinator] Concurrent signup detected for %s, re-reading", email)
		found, ferr := u.users.FindByEmail(email)
		if ferr != nil {
			return nil, nil, fmt.Errorf("re-read user after duplicate: %w", ferr)
		}
		if found == nil {
			return nil, nil, fmt.Errorf("create user: %w", err)
		}
		return nil, found, nil
	}
	return user, nil, nil
}

// subscribeNewUser is the first-contact branch: local records first, then
// the OneSignal identity, then the write-once linkage, then the optional
// immediate send.
func (u *subscriptionCoordinator) subscribeNewUser(ctx context.Context, user *domain.User, req SubscribeRequest) error {
	sub, err := u.createSubscription(user, req.Type)
	if err != nil {
		return err
	}

	tags := activeTags(user)
	tags[string(req.Type)] = "true"
	params := onesignal.CreateIdentityParams{
		Email: req.Email,
		Tags:  tags,
	}
	if req.Geo != nil {
		params.IP = req.Geo.IP
		params.Latitude = &req.Geo.Lat
		params.Longitude = &req.Geo.Lon
		params.Timezone = req.Geo.Timezone
	}

	identity, err := u.directory.CreateIdentity(ctx, params)
	if err != nil {
		return fmt.Errorf("create remote identity: %w", err)
	}

	if err := u.users.SetOneSignalIdentity(user.ID, identity.UserID, identity.EmailSubscriptionID); err != nil {
		return fmt.Errorf("store remote identity ids: %w", err)
	}

	return u.maybeSendNow(ctx, sub, identity.EmailSubscriptionID)
}

// subscribeNewTopic adds a topic to an existing user and flips its tag on
// the remote identity.
func (u *subscriptionCoordinator) subscribeNewTopic(ctx context.Context, user *domain.User, req SubscribeRequest) error {
	sub, err := u.createSubscription(user, req.Type)
	if err != nil {
		return err
	}

	subscriptionID, err := u.enableRemoteTag(ctx, user, req)
	if err != nil {
		return err
	}
	return u.maybeSendNow(ctx, sub, subscriptionID)
}

// resubscribe reactivates a cancelled subscription. The record is reused,
// never recreated.
func (u *subscriptionCoordinator) resubscribe(ctx context.Context, user *domain.User, sub *domain.Subscription, req SubscribeRequest) error {
	if err := u.subs.Reactivate(sub.ID); err != nil {
		return fmt.Errorf("reactivate subscription: %w", err)
	}
	sub.Enabled = true
	sub.UnsubscribedAt = nil

	subscriptionID, err := u.enableRemoteTag(ctx, user, req)
	if err != nil {
		return err
	}
	return u.maybeSendNow(ctx, sub, subscriptionID)
}

func (u *subscriptionCoordinator) createSubscription(user *domain.User, t domain.Type) (*domain.Subscription, error) {
	sub := &domain.Subscription{
		UserID:       user.ID,
		Type:         t,
		Enabled:      true,
		SubscribedAt: u.now(),
	}
	if err := u.subs.Create(sub); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubscription) {
			// Lost a race against an identical subscribe request.
			return nil, ErrAlreadySubscribed
		}
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

// enableRemoteTag sets the topic's tag to true on the user's OneSignal
// identity and returns the email channel-subscription id for send-now. A
// user without linkage (a previous request failed between the local write
// and the identity creation) is healed by creating the identity here, tagged
// from the user's actual active subscriptions.
func (u *subscriptionCoordinator) enableRemoteTag(ctx context.Context, user *domain.User, req SubscribeRequest) (string, error) {
	if !user.Linked() {
		log.Printf("[Coordinator] User %s has no OneSignal linkage, creating identity now", user.ID)
		tags := activeTags(user)
		tags[string(req.Type)] = "true"
		identity, err := u.directory.CreateIdentity(ctx, onesignal.CreateIdentityParams{
			Email: req.Email,
			Tags:  tags,
		})
		if err != nil {
			return "", fmt.Errorf("create remote identity: %w", err)
		}
		if err := u.users.SetOneSignalIdentity(user.ID, identity.UserID, identity.EmailSubscriptionID); err != nil {
			return "", fmt.Errorf("store remote identity ids: %w", err)
		}
		return identity.EmailSubscriptionID, nil
	}

	tags, err := u.remoteTags(ctx, user)
	if err != nil {
		return "", err
	}
	tags[string(req.Type)] = "true"
	if err := u.directory.UpdateTags(ctx, *user.OneSignalUserID, tags); err != nil {
		return "", fmt.Errorf("update remote tags: %w", err)
	}
	return *user.OneSignalSubscriptionID, nil
}

// remoteTags fetches the identity's current tag map so a single-topic update
// does not drop the others. A failed lookup is an error: pushing a partial
// map would drop still-active topics from remote targeting. An identity
// OneSignal has no tag state for is rebuilt from the local subscriptions.
func (u *subscriptionCoordinator) remoteTags(ctx context.Context, user *domain.User) (map[string]string, error) {
	identity, err := u.directory.FindIdentityByEmail(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("fetch remote tags for %s: %w", user.Email, err)
	}
	if identity == nil || identity.Tags == nil {
		return activeTags(user), nil
	}
	tags := make(map[string]string, len(identity.Tags))
	for k, v := range identity.Tags {
		tags[k] = v
	}
	return tags, nil
}

// maybeSendNow sends today's Omer notification immediately after a
// successful subscribe, when the topic is the daily one, the local time sits
// inside the send window, and today has a table entry. Skipping the send is
// never an error: the subscriber receives the next scheduled dispatch.
func (u *subscriptionCoordinator) maybeSendNow(ctx context.Context, sub *domain.Subscription, oneSignalSubscriptionID string) error {
	if sub.Type != domain.TypeOmerCount {
		return nil
	}

	now := u.now().In(u.loc)
	if now.Hour() < u.windowStartHour || now.Hour() > u.windowEndHour {
		log.Printf("[Coordinator] Outside send window (%02d:00-%02d:59), skipping immediate send", u.windowStartHour, u.windowEndHour)
		return nil
	}

	day := u.calendar.DayFor(now)
	if day == nil {
		log.Printf("[Coordinator] No Omer entry for %s, skipping immediate send", now.Format("2006-01-02"))
		return nil
	}

	data := day.NotificationData()
	data["subscriptionType"] = string(sub.Type)
	if err := u.directory.SendToSubscription(ctx, oneSignalSubscriptionID, u.templateID, day.Subject(), data); err != nil {
		return fmt.Errorf("send immediate notification: %w", err)
	}

	sentAt := u.now()
	if err := u.subs.MarkSent(sub.ID, sentAt); err != nil {
		return fmt.Errorf("mark subscription sent: %w", err)
	}
	sub.LastSentAt = &sentAt
	return nil
}

// Unsubscribe soft-cancels a subscription. The remote tag is flipped before
// the local record: if the tag update fails the subscription stays ACTIVE
// and the request can simply be retried.
func (u *subscriptionCoordinator) Unsubscribe(ctx context.Context, req UnsubscribeRequest) error {
	user, err := u.users.FindByOneSignalSubscriptionID(req.OneSignalSubscriptionID)
	if err != nil {
		return fmt.Errorf("find user by onesignal subscription id: %w", err)
	}
	if user == nil {
		return ErrSubscriptionNotFound
	}

	sub := user.SubscriptionOf(req.Type)
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	if sub.Cancelled() {
		return ErrAlreadyUnsubscribed
	}

	tags, err := u.remoteTags(ctx, user)
	if err != nil {
		return err
	}
	tags[string(req.Type)] = "false"
	if err := u.directory.UpdateTags(ctx, *user.OneSignalUserID, tags); err != nil {
		return fmt.Errorf("update remote tags: %w", err)
	}

	if err := u.subs.MarkUnsubscribed(sub.ID, u.now()); err != nil {
		return fmt.Errorf("mark subscription unsubscribed: %w", err)
	}
	return nil
}

// activeTags builds the full tag map from the user's local subscriptions:
// one entry per known topic, true for each currently active one.
func activeTags(user *domain.User) map[string]string {
	tags := make(map[string]string, len(domain.AllTypes))
	for _, t := range domain.AllTypes {
		sub := user.SubscriptionOf(t)
		tags[string(t)] = fmt.Sprintf("%t", sub != nil && sub.Enabled)
	}
	return tags
}
