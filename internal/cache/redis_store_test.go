package cache

import (
	"context"
	"errors"
	"net"
	"reflect"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
)

// commandLog answers every command itself and records it, so no server is
// needed.
type commandLog struct {
	mu   sync.Mutex
	cmds [][]interface{}
	fail error
}

func (h *commandLog) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial disabled")
	}
}

func (h *commandLog) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.cmds = append(h.cmds, cmd.Args())
		if h.fail != nil {
			cmd.SetErr(h.fail)
			return h.fail
		}
		return nil
	}
}

func (h *commandLog) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func newHookedStore(t *testing.T, prefix string) (*RedisStore, *commandLog) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	hooks := &commandLog{}
	client.AddHook(hooks)
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client, prefix), hooks
}

func TestRedisStore_DeleteIssuesOneUnlink(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   []interface{}
	}{
		{"no prefix", "", []interface{}{"unlink", "room:a", "user:1:rooms"}},
		{"prefixed", "svc", []interface{}{"unlink", "svc:room:a", "svc:user:1:rooms"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, hooks := newHookedStore(t, tt.prefix)
			if err := s.Delete(context.Background(), "room:a", "user:1:rooms"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if len(hooks.cmds) != 1 {
				t.Fatalf("commands = %v, want exactly one", hooks.cmds)
			}
			if !reflect.DeepEqual(hooks.cmds[0], tt.want) {
				t.Fatalf("command = %v, want %v", hooks.cmds[0], tt.want)
			}
		})
	}
}

func TestRedisStore_DeleteNothing(t *testing.T) {
	s, hooks := newHookedStore(t, "")
	if err := s.Delete(context.Background()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(hooks.cmds) != 0 {
		t.Fatalf("commands = %v, want none", hooks.cmds)
	}
}

func TestRedisStore_FailureIsStoreUnavailable(t *testing.T) {
	s, hooks := newHookedStore(t, "")
	hooks.fail = errors.New("connection refused")

	if err := s.Delete(context.Background(), "room:a"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Delete err = %v, want ErrStoreUnavailable", err)
	}
	if _, err := s.Get(context.Background(), "room:a"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Get err = %v, want ErrStoreUnavailable", err)
	}
}
