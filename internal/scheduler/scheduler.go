package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"TableWatch/entity"
	"TableWatch/internal/lib/sl"
	"TableWatch/internal/metrics"
)

// Store is the subscription storage used by the poller.
type Store interface {
	FindActiveSubscriptions(ctx context.Context, provider string) ([]entity.Subscription, error)
	FindExpiredSubscriptions(ctx context.Context, provider string, createdBefore time.Time, today string) ([]entity.Subscription, error)
	// ArchiveSubscription must archive only a still active subscription and report whether it did.
	ArchiveSubscription(ctx context.Context, id string, reason entity.ArchiveReason) (bool, error)
}

// Checker asks the provider for free tables.
type Checker interface {
	CheckAvailability(ctx context.Context, ref string, criteria entity.Criteria) (*entity.Availability, error)
	BookingLink(ref string, criteria entity.Criteria) string
}

// Notifier delivers poller messages to the chat of a subscription.
type Notifier interface {
	NotifyAvailable(sub entity.Subscription, link string) error
	NotifyExpired(sub entity.Subscription) error
}

// Listener is told about every subscription the poller archived.
type Listener interface {
	SubscriptionArchived(sub entity.Subscription, reason entity.ArchiveReason)
}

type Options struct {
	// ExpirationWindow is the age after which an active subscription is given up.
	ExpirationWindow time.Duration
	// Expiry notices are sent only for local hours in [DayStartHour, DayEndHour).
	DayStartHour int
	DayEndHour   int
	Location     *time.Location
	Schedule     PollSchedule
}

type timer interface {
	Stop() bool
}

// Scheduler polls one provider for the active subscriptions.
// Every pass re-arms a one-shot timer when it is done, so passes never overlap.
type Scheduler struct {
	provider string
	store    Store
	checker  Checker
	notifier Notifier
	listener Listener
	opts     Options

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) timer

	mu      sync.Mutex
	timer   timer
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool

	// held for the duration of a pass
	running sync.Mutex
	// group keys whose last provider call failed, guarded by running
	failing map[string]bool

	log *slog.Logger
}

func New(provider string, store Store, checker Checker, notifier Notifier, opts Options, log *slog.Logger) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if len(opts.Schedule) == 0 {
		opts.Schedule = DefaultSchedule()
	}
	return &Scheduler{
		provider: provider,
		store:    store,
		checker:  checker,
		notifier: notifier,
		opts:     opts,
		failing:  make(map[string]bool),
		now:      time.Now,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
		log: log.With(sl.Module("scheduler"), slog.String("provider", provider)),
	}
}

// SetListener sets the listener for archived subscriptions.
func (s *Scheduler) SetListener(l Listener) {
	s.listener = l
}

func (s *Scheduler) Provider() string {
	return s.provider
}

// Start runs the first pass at once in the background and then keeps polling until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil || s.stopped {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.log.Info("scheduler started")
	go s.fire()
}

// Stop cancels the pending timer and the pass in progress. It cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("scheduler stopped")
}

// ForcePoll runs an extra pass in the background unless one is already running.
func (s *Scheduler) ForcePoll() error {
	s.mu.Lock()
	ctx, stopped := s.ctx, s.stopped
	s.mu.Unlock()

	if ctx == nil || stopped {
		return errors.New("scheduler is not running")
	}
	go s.Tick(ctx)
	return nil
}

// fire is the timer body: one pass, then the next timer, whatever the pass did.
func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("poll pass panic", sl.Err(fmt.Errorf("%v", r)))
		}
		s.schedule(s.nextDelay())
	}()
	s.Tick(ctx)
}

// schedule arms the single pending timer, replacing any timer already armed.
func (s *Scheduler) schedule(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.afterFunc(d, s.fire)
	metrics.SetNextDelay(s.provider, d)
	s.log.Debug("next pass scheduled", slog.Duration("delay", d))
}

func (s *Scheduler) nextDelay() time.Duration {
	return s.opts.Schedule.Delay(s.now().In(s.opts.Location).Hour())
}

// Tick runs one cleanup and alert pass. It reports false when another pass was running.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.running.TryLock() {
		metrics.IncPollPass(s.provider, "skipped")
		s.log.Debug("pass already running")
		return false
	}
	defer s.running.Unlock()

	start := time.Now()
	s.cleanup(ctx)
	s.alert(ctx)

	metrics.IncPollPass(s.provider, "ok")
	metrics.ObservePollPass(s.provider, time.Since(start))
	return true
}

// cleanup archives subscriptions that are too old or whose date has passed.
func (s *Scheduler) cleanup(ctx context.Context) {
	now := s.now()
	today := now.In(s.opts.Location).Format(entity.DateLayout)
	createdBefore := now.Add(-s.opts.ExpirationWindow)

	subs, err := s.store.FindExpiredSubscriptions(ctx, s.provider, createdBefore, today)
	if err != nil {
		s.log.Error("find expired subscriptions", sl.Err(err))
		return
	}
	if len(subs) > 0 {
		s.log.Debug("cleanup", slog.Int("expired", len(subs)))
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		s.expire(ctx, sub, now)
	}
}

// alert checks the active subscriptions, one provider call per restaurant, date and party size.
func (s *Scheduler) alert(ctx context.Context) {
	subs, err := s.store.FindActiveSubscriptions(ctx, s.provider)
	if err != nil {
		s.log.Error("find active subscriptions", sl.Err(err))
		return
	}
	metrics.SetActiveSubscriptions(s.provider, len(subs))

	now := s.now()
	var keys []string
	groups := make(map[string][]entity.Subscription)
	for _, sub := range subs {
		// the reservation time may pass between two cleanups
		if sub.ExpiredAt(now, s.opts.ExpirationWindow, s.opts.Location) {
			s.expire(ctx, sub, now)
			continue
		}
		key := sub.Criteria.GroupKey()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], sub)
	}
	for key := range s.failing {
		if _, ok := groups[key]; !ok {
			delete(s.failing, key)
		}
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		s.checkGroup(ctx, groups[key])
	}
}

func (s *Scheduler) checkGroup(ctx context.Context, group []entity.Subscription) {
	criteria := group[0].Criteria
	key := criteria.GroupKey()
	log := s.log.With(
		slog.String("restaurant", criteria.Restaurant),
		slog.String("date", criteria.Date),
		slog.Int("subscriptions", len(group)),
	)

	availability, err := s.checker.CheckAvailability(ctx, criteria.Restaurant, criteria)
	if err != nil {
		// warn once per outage, the admin chat receives warnings
		level := slog.LevelInfo
		if !s.failing[key] {
			level = slog.LevelWarn
			s.failing[key] = true
		}
		log.Log(ctx, level, "availability check", sl.Err(err))
		return
	}
	if s.failing[key] {
		delete(s.failing, key)
		log.Info("availability check recovered")
	}

	for _, sub := range group {
		if _, ok := availability.Match(sub.Criteria); ok {
			s.fulfil(ctx, sub)
		}
	}
}

// fulfil archives first and notifies only the pass that won the archive.
func (s *Scheduler) fulfil(ctx context.Context, sub entity.Subscription) {
	log := s.log.With(slog.String("subscription_id", sub.ID), slog.String("chat_id", sub.ChatID))

	archived, err := s.store.ArchiveSubscription(ctx, sub.ID, entity.ArchiveFulfilled)
	if err != nil {
		log.Error("archive fulfilled subscription", sl.Err(err))
		return
	}
	if !archived {
		log.Debug("subscription already archived")
		return
	}
	metrics.IncArchived(s.provider, string(entity.ArchiveFulfilled))
	s.archived(sub, entity.ArchiveFulfilled)

	link := s.checker.BookingLink(sub.Criteria.Restaurant, sub.Criteria)
	err = s.notifier.NotifyAvailable(sub, link)
	metrics.IncNotification(s.provider, "available", err == nil)
	if err != nil {
		log.Error("notify available", sl.Err(err))
		return
	}
	log.Info("subscription fulfilled")
}

func (s *Scheduler) expire(ctx context.Context, sub entity.Subscription, now time.Time) {
	log := s.log.With(slog.String("subscription_id", sub.ID), slog.String("chat_id", sub.ChatID))

	archived, err := s.store.ArchiveSubscription(ctx, sub.ID, entity.ArchiveExpired)
	if err != nil {
		log.Error("archive expired subscription", sl.Err(err))
		return
	}
	if !archived {
		log.Debug("subscription already archived")
		return
	}
	metrics.IncArchived(s.provider, string(entity.ArchiveExpired))
	s.archived(sub, entity.ArchiveExpired)

	if !s.daytime(now) {
		log.Info("subscription expired at night, notice skipped")
		return
	}
	err = s.notifier.NotifyExpired(sub)
	metrics.IncNotification(s.provider, "expired", err == nil)
	if err != nil {
		log.Error("notify expired", sl.Err(err))
		return
	}
	log.Info("subscription expired")
}

func (s *Scheduler) archived(sub entity.Subscription, reason entity.ArchiveReason) {
	if s.listener != nil {
		s.listener.SubscriptionArchived(sub, reason)
	}
}

// daytime reports whether now falls into the window for courtesy messages.
func (s *Scheduler) daytime(now time.Time) bool {
	h := now.In(s.opts.Location).Hour()
	start, end := s.opts.DayStartHour, s.opts.DayEndHour
	if start <= end {
		return h >= start && h < end
	}
	// window across midnight
	return h >= start || h < end
}
