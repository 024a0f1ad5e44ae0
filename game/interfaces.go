package game

import (
	"context"
	"time"
)

type WebsocketConnection interface {
	Close()
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

type Player interface {
	ID() string
	Username() string
	Send(data []byte) error
	Ping() error
	SetRoom(r Room)
	CancelAndRelease()
}

type Room interface {
	SetId(id string)
	SetParentLobby(l Lobby)
	Description() RoomDescription
	GameLoop()
	Tick(now time.Time)
	PingPlayers()
	Send(ctx context.Context, e ClientPacketEnvelope)
	RequestJoin(jreq roomJoinRequest)
	RemoveMe(ctx context.Context, p Player)
	CloseAndRelease()
}

type Lobby interface {
	RequestAddAndRunRoom(ctx context.Context, req addRoomRequest)
	ForwardPlayerJoinRequestToRoom(ctx context.Context, jreq roomJoinRequest)
	ForwardRandomJoinRequest(ctx context.Context, jreq randomJoinRequest)
	RequestUpdateDescription(desc RoomDescription)
	RemoveRoom(roomId string)
}

type UniqueIdGenerator interface {
	Generate() (string, error)
	Dispose(id string)
}

type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) <-chan time.Time
}

// RoomStore is the durable record of rooms, memberships and results.
// Gameplay never waits on it; see storeWriter.
type RoomStore interface {
	CreateRoom(ctx context.Context, code, createdBy string) error
	UpdateRoomStatus(ctx context.Context, code, status string) error
	DeleteRoom(ctx context.Context, code string) error
	AddToRoom(ctx context.Context, code, playerId string, isHost bool) error
	GetCountByRoomCode(ctx context.Context, code string) (int, error)
	GetRoomHost(ctx context.Context, code string) (string, error)
	UpdateHost(ctx context.Context, code, playerId string) error
	RemoveByPlayerId(ctx context.Context, playerId string) error
	SaveGameResult(ctx context.Context, code, playerId string, score int) error
}

type QuestionSource interface {
	GetRandomQuestions(ctx context.Context, count int) ([]Question, error)
}
