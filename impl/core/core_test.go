package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"TableWatch/entity"
)

type fakeRepo struct {
	keys    map[string]string
	checked int
	subs    map[string]*entity.Subscription
	users   []entity.User
}

func (f *fakeRepo) CheckApiKey(key string) (string, error) {
	f.checked++
	if u, ok := f.keys[key]; ok {
		return u, nil
	}
	return "", errors.New("api key not found")
}

func (f *fakeRepo) GenerateApiKey(username string) (string, error) {
	key := "key-" + username
	f.keys[key] = username
	return key, nil
}

func (f *fakeRepo) UpsertUser(_ context.Context, user entity.User) error {
	f.users = append(f.users, user)
	return nil
}

func (f *fakeRepo) ListSubscriptions(context.Context, entity.SubscriptionFilter) ([]entity.Subscription, error) {
	var out []entity.Subscription
	for _, s := range f.subs {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeRepo) RemoveSubscription(_ context.Context, provider, chatID, id string) (*entity.Subscription, error) {
	s, ok := f.subs[id]
	if !ok || s.Provider != provider || s.ChatID != chatID || !s.IsActive() {
		return nil, nil
	}
	s.Status = entity.SubscriptionArchived
	s.ArchivedReason = entity.ArchiveUserRemoved
	out := *s
	return &out, nil
}

type recSink struct {
	events []entity.SubscriptionEvent
}

func (r *recSink) Broadcast(event entity.SubscriptionEvent) {
	r.events = append(r.events, event)
}

type fakePoller struct {
	provider string
	polls    int
	stopped  bool
}

func (p *fakePoller) Provider() string { return p.provider }

func (p *fakePoller) ForcePoll() error {
	p.polls++
	return nil
}

func (p *fakePoller) Stop() { p.stopped = true }

func newTestCore() (*Core, *fakeRepo, *recSink) {
	repo := &fakeRepo{keys: map[string]string{"db-key": "ops"}, subs: make(map[string]*entity.Subscription)}
	sink := &recSink{}
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.SetRepository(repo)
	c.SetEventSink(sink)
	c.SetAuthKey("config-key")
	return c, repo, sink
}

func TestAuthenticateByToken(t *testing.T) {
	c, repo, _ := newTestCore()

	user, err := c.AuthenticateByToken("config-key")
	if err != nil || user.Username != adminUsername {
		t.Fatalf("config key = %+v, %v", user, err)
	}
	if repo.checked != 0 {
		t.Fatal("config key went to the database")
	}

	for i := 0; i < 2; i++ {
		user, err = c.AuthenticateByToken("db-key")
		if err != nil || user.Username != "ops" {
			t.Fatalf("db key = %+v, %v", user, err)
		}
	}
	if repo.checked != 1 {
		t.Fatalf("database checked %d times, want 1", repo.checked)
	}

	if _, err = c.AuthenticateByToken("wrong"); err == nil {
		t.Fatal("unknown key accepted")
	}
	if _, err = c.ValidateToken(""); err == nil {
		t.Fatal("empty token accepted")
	}
}

func TestGenerateApiKeyIsAccepted(t *testing.T) {
	c, repo, _ := newTestCore()

	key, err := c.GenerateApiKey("anna")
	if err != nil {
		t.Fatal(err)
	}
	name, err := c.ValidateToken(key)
	if err != nil || name != "anna" {
		t.Fatalf("ValidateToken = %q, %v", name, err)
	}
	if repo.checked != 0 {
		t.Fatal("issued key went to the database")
	}
}

func TestRemoveSubscription(t *testing.T) {
	c, repo, sink := newTestCore()
	repo.subs["s1"] = &entity.Subscription{ID: "s1", Provider: entity.ProviderResy, ChatID: "7", Status: entity.SubscriptionActive}

	req := entity.SubscriptionRemoval{ID: "s1", Provider: entity.ProviderResy, ChatID: "8"}
	if _, err := c.RemoveSubscription(context.Background(), req); !errors.Is(err, ErrNotActive) {
		t.Fatalf("other chat removal err = %v", err)
	}

	req.ChatID = "7"
	sub, err := c.RemoveSubscription(context.Background(), req)
	if err != nil || sub.ArchivedReason != entity.ArchiveUserRemoved {
		t.Fatalf("removal = %+v, %v", sub, err)
	}
	if _, err = c.RemoveSubscription(context.Background(), req); !errors.Is(err, ErrNotActive) {
		t.Fatalf("second removal err = %v", err)
	}

	if len(sink.events) != 1 || sink.events[0].Type != entity.EventRemoved {
		t.Fatalf("events = %+v", sink.events)
	}
}

func TestLifecycleEvents(t *testing.T) {
	c, _, sink := newTestCore()
	sub := entity.Subscription{ID: "s1"}

	c.SubscriptionCreated(sub)
	c.SubscriptionArchived(sub, entity.ArchiveFulfilled)
	c.SubscriptionArchived(sub, entity.ArchiveExpired)

	want := []entity.EventType{entity.EventCreated, entity.EventFulfilled, entity.EventExpired}
	if len(sink.events) != len(want) {
		t.Fatalf("events = %+v", sink.events)
	}
	for i, w := range want {
		if sink.events[i].Type != w || sink.events[i].Subscription.ID != "s1" {
			t.Errorf("event %d = %+v, want %s", i, sink.events[i], w)
		}
	}
}

func TestForcePollAndStop(t *testing.T) {
	c, _, _ := newTestCore()
	p := &fakePoller{provider: entity.ProviderOpenTable}
	c.AddPoller(p)

	if err := c.ForcePoll(entity.ProviderOpenTable); err != nil || p.polls != 1 {
		t.Fatalf("ForcePoll = %v, polls %d", err, p.polls)
	}
	if err := c.ForcePoll(entity.ProviderResy); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("unknown provider err = %v", err)
	}

	c.Stop()
	if !p.stopped {
		t.Fatal("poller not stopped")
	}
}
