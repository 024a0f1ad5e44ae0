package storage

import "context"

// NopStore satisfies game.RoomStore without persisting anything. Used
// when no POSTGRES_URL is configured; sessions are live-only.
type NopStore struct{}

func NewNopStore() *NopStore {
	return &NopStore{}
}

func (NopStore) CreateRoom(context.Context, string, string) error          { return nil }
func (NopStore) UpdateRoomStatus(context.Context, string, string) error    { return nil }
func (NopStore) DeleteRoom(context.Context, string) error                  { return nil }
func (NopStore) AddToRoom(context.Context, string, string, bool) error     { return nil }
func (NopStore) GetCountByRoomCode(context.Context, string) (int, error)   { return 0, nil }
func (NopStore) GetRoomHost(context.Context, string) (string, error)       { return "", nil }
func (NopStore) UpdateHost(context.Context, string, string) error          { return nil }
func (NopStore) RemoveByPlayerId(context.Context, string) error            { return nil }
func (NopStore) SaveGameResult(context.Context, string, string, int) error { return nil }
