package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/membership-service/internal/cache"
	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
	"github.com/weiawesome/wes-io-live/membership-service/internal/generator"
	"github.com/weiawesome/wes-io-live/membership-service/internal/repository"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/database"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/pubsub"
)

// fakeStore is an in-memory cache.Store whose backend can be switched off.
type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
	down bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}}
}

func (f *fakeStore) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeStore) put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return "", fmt.Errorf("%w: connection refused", cache.ErrStoreUnavailable)
	}
	v, ok := f.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return fmt.Errorf("%w: connection refused", cache.ErrStoreUnavailable)
	}
	f.data[key] = value
	return nil
}

func (f *fakeStore) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return fmt.Errorf("%w: connection refused", cache.ErrStoreUnavailable)
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) Exists(_ context.Context, keys ...string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		if _, ok := f.data[k]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = map[string]string{}
	return nil
}

func (f *fakeStore) Close() error { return nil }

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []*pubsub.Event
}

func (r *recorder) Publish(_ context.Context, _ string, e *pubsub.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc    RoomService
	repo   *repository.GormRoomRepository
	db     *gorm.DB
	store  *fakeStore
	events *recorder
	users  map[string]uint64
}

func newFixture(t *testing.T, usernames ...string) *fixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_foreign_keys=1", name),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := make(map[string]uint64, len(usernames))
	for _, u := range usernames {
		m := domain.UserModel{Name: u, Username: u, PasswordHash: "x"}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed %s: %v", u, err)
		}
		users[u] = m.ID
	}

	repo := repository.NewGormRoomRepository(db)
	store := newFakeStore()
	rc := cache.NewRoomCache(store, time.Hour)
	events := &recorder{}

	return &fixture{
		svc:    NewRoomService(repo, rc, NewCacheInvalidator(rc), events, generator.NewRoomIDGenerator()),
		repo:   repo,
		db:     db,
		store:  store,
		events: events,
		users:  users,
	}
}

func (f *fixture) createRoom(t *testing.T, owner, name string) *domain.RoomDetail {
	t.Helper()
	d, err := f.svc.CreateRoom(context.Background(), f.users[owner], name, nil)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return d
}
