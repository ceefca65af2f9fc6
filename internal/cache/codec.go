package cache

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
)

const (
	codecVersion = 1

	kindRoom     = "room"
	kindRoomList = "room_list"
)

// envelope: {"v":1,"kind":"room"|"room_list","data":<payload>}
type envelope struct {
	V    int             `json:"v"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Codec encodes cached projections into a versioned, kind-tagged envelope
// and checks their shape on the way back. Unknown versions fail closed.
type Codec struct{}

func (Codec) EncodeRoom(d *domain.RoomDetail) (string, error) {
	if d == nil {
		return "", fmt.Errorf("%w: nil room", ErrEncode)
	}
	return encode(kindRoom, d)
}

func (Codec) EncodeRoomList(rooms []domain.Room) (string, error) {
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return encode(kindRoomList, rooms)
}

func (Codec) DecodeRoom(s string) (*domain.RoomDetail, error) {
	data, err := open(s, kindRoom)
	if err != nil {
		return nil, err
	}
	if err := checkRoomShape(data); err != nil {
		return nil, err
	}

	var d domain.RoomDetail
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCacheValue, err)
	}
	return &d, nil
}

func (Codec) DecodeRoomList(s string) ([]domain.Room, error) {
	data, err := open(s, kindRoomList)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil || items == nil {
		return nil, fmt.Errorf("%w: room list is not an array", ErrInvalidCacheValue)
	}
	for i, item := range items {
		if err := checkRoomShape(item); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}

	rooms := make([]domain.Room, 0, len(items))
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCacheValue, err)
	}
	return rooms, nil
}

func encode(kind string, v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	out, err := json.Marshal(envelope{V: codecVersion, Kind: kind, Data: data})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return string(out), nil
}

func open(s, kind string) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, fmt.Errorf("%w: not an envelope", ErrInvalidCacheValue)
	}
	if env.V != codecVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidCacheValue, env.V)
	}
	if env.Kind != kind {
		return nil, fmt.Errorf("%w: kind %q, want %q", ErrInvalidCacheValue, env.Kind, kind)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidCacheValue)
	}
	return env.Data, nil
}

// checkRoomShape requires a JSON object whose id and name are strings.
func checkRoomShape(raw json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return fmt.Errorf("%w: room is not an object", ErrInvalidCacheValue)
	}
	for _, name := range []string{"id", "name"} {
		v, ok := fields[name]
		if !ok || !isJSONString(v) {
			return fmt.Errorf("%w: room %s is not a string", ErrInvalidCacheValue, name)
		}
	}
	return nil
}

func isJSONString(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"'
}
