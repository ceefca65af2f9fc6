package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-live/membership-service/internal/cache"
	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
	"github.com/weiawesome/wes-io-live/membership-service/internal/generator"
	"github.com/weiawesome/wes-io-live/membership-service/internal/repository"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/pubsub"
)

func TestCreateRoom(t *testing.T) {
	f := newFixture(t, "ann")
	d := f.createRoom(t, "ann", "general")

	if !generator.ValidRoomID(d.ID) {
		t.Fatalf("room id %q is not 15 alphanumeric characters", d.ID)
	}
	if len(d.Members) != 1 || d.StatusOf(f.users["ann"]) != domain.AdminMember {
		t.Fatalf("creator should be the only admin member: %+v", d.Members)
	}
	if len(d.Requests) != 0 {
		t.Fatalf("new room has requests: %+v", d.Requests)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != pubsub.EventRoomCreated {
		t.Fatalf("events = %v", got)
	}
}

func TestGetRoomsOfUser_ReflectsCreateAndLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann", "bob")
	ann, bob := f.users["ann"], f.users["bob"]

	rooms, fromCache, err := f.svc.GetRoomsOfUser(ctx, ann)
	if err != nil || fromCache || len(rooms) != 0 {
		t.Fatalf("initial = %v, %v, %v", rooms, fromCache, err)
	}
	if _, fromCache, _ = f.svc.GetRoomsOfUser(ctx, ann); !fromCache {
		t.Fatal("second read should be served from cache")
	}

	d := f.createRoom(t, "ann", "general")
	rooms, fromCache, _ = f.svc.GetRoomsOfUser(ctx, ann)
	if fromCache || len(rooms) != 1 || rooms[0].ID != d.ID {
		t.Fatalf("after create = %v, fromCache=%v", rooms, fromCache)
	}

	// Bring bob in so ann's leave does not delete the room.
	if _, err := f.svc.JoinRequest(ctx, bob, d.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.HandleRequests(ctx, ann, d.ID, []uint64{bob}, nil); err != nil {
		t.Fatal(err)
	}

	if outcome, err := f.svc.LeaveRoom(ctx, ann, d.ID); err != nil || outcome != domain.OutcomeApplied {
		t.Fatalf("LeaveRoom = %v, %v", outcome, err)
	}
	rooms, _, _ = f.svc.GetRoomsOfUser(ctx, ann)
	if len(rooms) != 0 {
		t.Fatalf("after leave = %v", rooms)
	}
}

func TestJoinRequest_Twice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann", "bob")
	d := f.createRoom(t, "ann", "general")

	first, err := f.svc.JoinRequest(ctx, f.users["bob"], d.ID)
	if err != nil || first != domain.OutcomeApplied {
		t.Fatalf("first = %v, %v", first, err)
	}
	second, err := f.svc.JoinRequest(ctx, f.users["bob"], d.ID)
	if err != nil || second != domain.OutcomeIgnored {
		t.Fatalf("second = %v, %v", second, err)
	}

	var n int64
	f.db.Model(&domain.RequestModel{}).Where("room_id = ?", d.ID).Count(&n)
	if n != 1 {
		t.Fatalf("request edges = %d, want 1", n)
	}
}

func TestJoinRequest_Ignored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann")
	d := f.createRoom(t, "ann", "general")

	tests := []struct {
		name   string
		roomID string
	}{
		{"missing room", "missing00000000"},
		{"already member", d.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := f.svc.JoinRequest(ctx, f.users["ann"], tt.roomID)
			if err != nil || outcome != domain.OutcomeIgnored {
				t.Fatalf("JoinRequest = %v, %v", outcome, err)
			}
		})
	}
}

func TestAdminOperations_RequireAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann", "bob", "cy")
	ann, bob, cy := f.users["ann"], f.users["bob"], f.users["cy"]
	d := f.createRoom(t, "ann", "general")

	_, _ = f.svc.JoinRequest(ctx, bob, d.ID)
	if err := f.svc.HandleRequests(ctx, ann, d.ID, []uint64{bob}, nil); err != nil {
		t.Fatal(err)
	}
	_, _ = f.svc.JoinRequest(ctx, cy, d.ID)

	update := &domain.UpdateRoomRequest{Name: "x", UserIDs: []uint64{bob}, AdminIDs: []uint64{bob}}
	ops := map[string]func(uint64, string) error{
		"update": func(u uint64, id string) error { _, err := f.svc.UpdateRoom(ctx, u, id, update); return err },
		"delete": func(u uint64, id string) error { return f.svc.DeleteRoom(ctx, u, id) },
		"handle": func(u uint64, id string) error { return f.svc.HandleRequests(ctx, u, id, []uint64{cy}, nil) },
	}
	for name, op := range ops {
		t.Run(name+"/member", func(t *testing.T) {
			if err := op(bob, d.ID); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("got %v, want ErrUnauthorized", err)
			}
		})
		t.Run(name+"/requester", func(t *testing.T) {
			if err := op(cy, d.ID); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("got %v, want ErrUnauthorized", err)
			}
		})
		t.Run(name+"/missing room", func(t *testing.T) {
			if err := op(ann, "missing00000000"); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("got %v, want ErrUnauthorized", err)
			}
		})
	}

	// Nothing changed.
	detail, _, err := f.svc.GetRoom(ctx, ann, d.ID)
	if err != nil || detail.Name != "general" || detail.StatusOf(cy) != domain.Requested {
		t.Fatalf("room mutated by unauthorized calls: %+v, %v", detail, err)
	}
}

func TestScenario_RequestAcceptReadLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann", "bob")
	ann, bob := f.users["ann"], f.users["bob"]
	d := f.createRoom(t, "ann", "general")

	if _, _, err := f.svc.GetRoom(ctx, bob, d.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-member read = %v", err)
	}

	if _, err := f.svc.JoinRequest(ctx, bob, d.ID); err != nil {
		t.Fatal(err)
	}
	detail, _, _ := f.svc.GetRoom(ctx, ann, d.ID)
	if detail.StatusOf(bob) != domain.Requested {
		t.Fatalf("bob should be requested, got %v", detail.StatusOf(bob))
	}
	requested, _ := f.svc.GetRequestedRoomsOfUser(ctx, bob)
	if len(requested) != 1 {
		t.Fatalf("requested rooms = %v", requested)
	}

	if err := f.svc.HandleRequests(ctx, ann, d.ID, []uint64{bob}, nil); err != nil {
		t.Fatalf("HandleRequests: %v", err)
	}

	detail, fromCache, err := f.svc.GetRoom(ctx, bob, d.ID)
	if err != nil {
		t.Fatalf("member read: %v", err)
	}
	if fromCache {
		t.Fatal("room should have been invalidated by accept")
	}
	if detail.StatusOf(bob) != domain.RegularMember || len(detail.Requests) != 0 {
		t.Fatalf("unexpected detail after accept: %+v", detail)
	}
	rooms, _, _ := f.svc.GetRoomsOfUser(ctx, bob)
	if len(rooms) != 1 {
		t.Fatalf("bob rooms = %v", rooms)
	}

	if outcome, err := f.svc.LeaveRoom(ctx, bob, d.ID); err != nil || outcome != domain.OutcomeApplied {
		t.Fatalf("LeaveRoom = %v, %v", outcome, err)
	}
	if _, _, err := f.svc.GetRoom(ctx, bob, d.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("read after leave = %v", err)
	}
	if outcome, _ := f.svc.LeaveRoom(ctx, bob, d.ID); outcome != domain.OutcomeIgnored {
		t.Fatalf("second leave = %v", outcome)
	}
}

func TestHandleRequests_SkipsUnknownAndRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann", "bob", "cy", "dee")
	ann, bob, cy, dee := f.users["ann"], f.users["bob"], f.users["cy"], f.users["dee"]
	d := f.createRoom(t, "ann", "general")

	_, _ = f.svc.JoinRequest(ctx, bob, d.ID)
	_, _ = f.svc.JoinRequest(ctx, cy, d.ID)

	if err := f.svc.HandleRequests(ctx, ann, d.ID, []uint64{bob, dee}, []uint64{cy, bob}); err != nil {
		t.Fatal(err)
	}

	detail, _, _ := f.svc.GetRoom(ctx, ann, d.ID)
	if detail.StatusOf(bob) != domain.RegularMember {
		t.Fatalf("bob = %v, want member", detail.StatusOf(bob))
	}
	if detail.StatusOf(cy) != domain.NonMember {
		t.Fatalf("cy = %v, want rejected", detail.StatusOf(cy))
	}
	if detail.StatusOf(dee) != domain.NonMember {
		t.Fatalf("dee without request must not be added, got %v", detail.StatusOf(dee))
	}
}

func TestUpdateRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann", "bob", "cy")
	ann, bob, cy := f.users["ann"], f.users["bob"], f.users["cy"]
	d := f.createRoom(t, "ann", "general")
	_, _ = f.svc.JoinRequest(ctx, cy, d.ID)

	// Warm ann's and bob's caches.
	_, _, _ = f.svc.GetRoomsOfUser(ctx, ann)
	_, _, _ = f.svc.GetRoomsOfUser(ctx, bob)

	avatar := "https://example.com/room.png"
	updated, err := f.svc.UpdateRoom(ctx, ann, d.ID, &domain.UpdateRoomRequest{
		Name:     "renamed",
		Avatar:   &avatar,
		UserIDs:  []uint64{ann, bob, cy},
		AdminIDs: []uint64{ann, bob, 999},
	})
	if err != nil {
		t.Fatalf("UpdateRoom: %v", err)
	}
	if updated.Name != "renamed" || updated.Avatar != avatar {
		t.Fatalf("fields not updated: %+v", updated.Room)
	}
	if updated.StatusOf(bob) != domain.AdminMember || updated.StatusOf(cy) != domain.RegularMember {
		t.Fatalf("roster = %+v", updated.Members)
	}
	if len(updated.Requests) != 0 {
		t.Fatalf("new member kept a request edge: %+v", updated.Requests)
	}
	if len(updated.Members) != 3 {
		t.Fatalf("admin id outside the member list was added: %+v", updated.Members)
	}

	if f.store.has(cache.UserRoomsKey(ann)) || f.store.has(cache.UserRoomsKey(bob)) {
		t.Fatal("user room lists not invalidated")
	}
	rooms, _, _ := f.svc.GetRoomsOfUser(ctx, bob)
	if len(rooms) != 1 || rooms[0].Name != "renamed" {
		t.Fatalf("bob rooms = %v", rooms)
	}
}

func TestUpdateRoom_CanDropEveryAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann", "bob")
	ann, bob := f.users["ann"], f.users["bob"]
	d := f.createRoom(t, "ann", "general")

	updated, err := f.svc.UpdateRoom(ctx, ann, d.ID, &domain.UpdateRoomRequest{
		Name:     "general",
		UserIDs:  []uint64{ann, bob},
		AdminIDs: []uint64{999},
	})
	if err != nil {
		t.Fatalf("UpdateRoom: %v", err)
	}
	for _, m := range updated.Members {
		if m.Role == domain.RoleAdmin {
			t.Fatalf("expected zero admins, found %+v", m)
		}
	}
	if err := f.svc.DeleteRoom(ctx, ann, d.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("former admin delete = %v", err)
	}
}

func TestDeleteRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann", "bob")
	ann, bob := f.users["ann"], f.users["bob"]
	d := f.createRoom(t, "ann", "general")
	_, _ = f.svc.JoinRequest(ctx, bob, d.ID)
	_ = f.svc.HandleRequests(ctx, ann, d.ID, []uint64{bob}, nil)
	_, _, _ = f.svc.GetRoomsOfUser(ctx, bob)

	if err := f.svc.DeleteRoom(ctx, ann, d.ID); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if f.store.has(cache.UserRoomsKey(bob)) || f.store.has(cache.RoomKey(d.ID)) {
		t.Fatal("cache not invalidated after delete")
	}
	if _, _, err := f.svc.GetRoom(ctx, ann, d.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("read deleted room = %v", err)
	}
	rooms, _, _ := f.svc.GetRoomsOfUser(ctx, bob)
	if len(rooms) != 0 {
		t.Fatalf("bob still lists %v", rooms)
	}
}

func TestLeaveRoom_LastMemberDeletesRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann")
	d := f.createRoom(t, "ann", "general")

	if outcome, err := f.svc.LeaveRoom(ctx, f.users["ann"], d.ID); err != nil || outcome != domain.OutcomeApplied {
		t.Fatalf("LeaveRoom = %v, %v", outcome, err)
	}
	if _, err := f.repo.GetByID(ctx, d.ID); err == nil {
		t.Fatal("empty room was not deleted")
	}
	got := f.events.types()
	if got[len(got)-1] != pubsub.EventRoomDeleted {
		t.Fatalf("events = %v", got)
	}
}

func TestGetRoom_CacheHitAndTamper(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann")
	ann := f.users["ann"]
	d := f.createRoom(t, "ann", "general")

	if _, fromCache, _ := f.svc.GetRoom(ctx, ann, d.ID); fromCache {
		t.Fatal("first read should miss")
	}
	if _, fromCache, _ := f.svc.GetRoom(ctx, ann, d.ID); !fromCache {
		t.Fatal("second read should hit")
	}

	for _, bad := range []string{"TOTO", "{}", "[{}, {}]"} {
		t.Run(bad, func(t *testing.T) {
			f.store.put(cache.RoomKey(d.ID), bad)
			detail, fromCache, err := f.svc.GetRoom(ctx, ann, d.ID)
			if err != nil || fromCache || detail.ID != d.ID {
				t.Fatalf("tampered read = %+v, %v, %v", detail, fromCache, err)
			}
			if _, fromCache, _ := f.svc.GetRoom(ctx, ann, d.ID); !fromCache {
				t.Fatal("cache not repopulated after tamper")
			}
		})
	}

	for _, bad := range []string{"TOTO", "{}", "[{}, {}]"} {
		t.Run("list/"+bad, func(t *testing.T) {
			f.store.put(cache.UserRoomsKey(ann), bad)
			rooms, fromCache, err := f.svc.GetRoomsOfUser(ctx, ann)
			if err != nil || fromCache || len(rooms) != 1 {
				t.Fatalf("tampered list = %v, %v, %v", rooms, fromCache, err)
			}
		})
	}
}

func TestCacheOutage_DoesNotFailRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann", "bob")
	ann, bob := f.users["ann"], f.users["bob"]

	f.store.setDown(true)

	d := f.createRoom(t, "ann", "general")
	if _, err := f.svc.JoinRequest(ctx, bob, d.ID); err != nil {
		t.Fatalf("JoinRequest during outage: %v", err)
	}
	if err := f.svc.HandleRequests(ctx, ann, d.ID, []uint64{bob}, nil); err != nil {
		t.Fatalf("HandleRequests during outage: %v", err)
	}
	detail, fromCache, err := f.svc.GetRoom(ctx, bob, d.ID)
	if err != nil || fromCache || detail.StatusOf(bob) != domain.RegularMember {
		t.Fatalf("GetRoom during outage = %+v, %v, %v", detail, fromCache, err)
	}

	f.store.setDown(false)
	if _, fromCache, _ := f.svc.GetRoom(ctx, bob, d.ID); fromCache {
		t.Fatal("nothing should have been cached during the outage")
	}
}

func TestGetRoomOverview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ann", "bob")
	bob := f.users["bob"]
	d := f.createRoom(t, "ann", "general")
	_ = f.createRoom(t, "bob", "own")
	_, _ = f.svc.JoinRequest(ctx, bob, d.ID)

	overview, _, err := f.svc.GetRoomOverview(ctx, bob)
	if err != nil {
		t.Fatalf("GetRoomOverview: %v", err)
	}
	if len(overview.Rooms) != 1 || overview.Rooms[0].Name != "own" {
		t.Fatalf("rooms = %v", overview.Rooms)
	}
	if len(overview.Requests) != 1 || overview.Requests[0].ID != d.ID {
		t.Fatalf("requests = %v", overview.Requests)
	}
	if _, fromCache, _ := f.svc.GetRoomOverview(ctx, bob); !fromCache {
		t.Fatal("second overview should use the cached room list")
	}
}

// scriptedIDs hands out ids in order.
type scriptedIDs struct{ ids []string }

func (s *scriptedIDs) Generate() (string, error) {
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id, nil
}

// takenIDs rejects Create for ids already in use, the way a primary key
// violation surfaces from the repository.
type takenIDs struct {
	repository.RoomRepository
	taken map[string]bool
}

func (r *takenIDs) Create(ctx context.Context, room *domain.Room) error {
	if r.taken[room.ID] {
		return repository.ErrRoomExists
	}
	return r.RoomRepository.Create(ctx, room)
}

func (r *takenIDs) Transaction(ctx context.Context, fn func(repository.RoomRepository) error) error {
	return r.RoomRepository.Transaction(ctx, func(tx repository.RoomRepository) error {
		return fn(&takenIDs{RoomRepository: tx, taken: r.taken})
	})
}

func TestCreateRoom_RegeneratesTakenID(t *testing.T) {
	f := newFixture(t, "ann")
	ctx := context.Background()

	rc := cache.NewRoomCache(f.store, time.Hour)
	repo := &takenIDs{RoomRepository: f.repo, taken: map[string]bool{"aaaaaaaaaaaaaaa": true}}

	svc := NewRoomService(repo, rc, NewCacheInvalidator(rc), nil, &scriptedIDs{ids: []string{"aaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbb"}})
	d, err := svc.CreateRoom(ctx, f.users["ann"], "general", nil)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if d.ID != "bbbbbbbbbbbbbbb" {
		t.Fatalf("room id = %q, want the regenerated id", d.ID)
	}

	svc = NewRoomService(repo, rc, NewCacheInvalidator(rc), nil, &scriptedIDs{ids: []string{"aaaaaaaaaaaaaaa", "aaaaaaaaaaaaaaa"}})
	if _, err := svc.CreateRoom(ctx, f.users["ann"], "general", nil); !errors.Is(err, repository.ErrRoomExists) {
		t.Fatalf("err = %v, want ErrRoomExists after exhausting attempts", err)
	}
}

// gatedDetail blocks GetDetail until release is closed.
type gatedDetail struct {
	repository.RoomRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *gatedDetail) GetDetail(ctx context.Context, id string) (*domain.RoomDetail, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return r.RoomRepository.GetDetail(ctx, id)
}

func TestGetRoom_SharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	f := newFixture(t, "ann")
	room := f.createRoom(t, "ann", "general")
	ann := f.users["ann"]

	repo := &gatedDetail{RoomRepository: f.repo, entered: make(chan struct{}), release: make(chan struct{})}
	rc := cache.NewRoomCache(newFakeStore(), time.Hour)
	svc := NewRoomService(repo, rc, NewCacheInvalidator(rc), nil, generator.NewRoomIDGenerator())

	type result struct {
		detail *domain.RoomDetail
		err    error
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan result, 1)
	go func() {
		d, _, err := svc.GetRoom(firstCtx, ann, room.ID)
		first <- result{d, err}
	}()
	<-repo.entered

	second := make(chan result, 1)
	go func() {
		d, _, err := svc.GetRoom(context.Background(), ann, room.ID)
		second <- result{d, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case r := <-first:
		if !errors.Is(r.err, context.Canceled) {
			t.Fatalf("cancelled caller err = %v, want context.Canceled", r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting on the shared load")
	}

	close(repo.release)
	select {
	case r := <-second:
		if r.err != nil {
			t.Fatalf("live caller err = %v", r.err)
		}
		if r.detail == nil || r.detail.ID != room.ID {
			t.Fatalf("live caller detail = %+v", r.detail)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("live caller never returned")
	}
}
