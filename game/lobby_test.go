package game

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLobby(t *testing.T) {
	ctx := context.Background()

	mockTickerCreator := &MockPeriodicTickerChannelCreator{}
	mockIdGenerator := &MockUniqueIdGenerator{}

	ticker := make(chan time.Time)
	pingTicker := make(chan time.Time)
	mockTickerCreator.On("Create", time.Second).Return(ticker)
	mockTickerCreator.On("Create", time.Second*30).Return(pingTicker)

	room2 := &MockRoom{}
	factory := func(host Player) Room { return room2 }

	lobby := NewLobby(mockIdGenerator, mockTickerCreator, factory)
	startedSignal := make(chan struct{})
	go lobby.LobbyActor(startedSignal)
	<-startedSignal

	// ticks with no rooms must not block the actor
	ticker <- time.Now()
	pingTicker <- time.Now()

	createdAt := time.Now()
	desc1 := RoomDescription{id: "AAA111", phase: PHASE_WAITING, playersCount: 1, maxPlayers: 2, questions: 5, createdAt: createdAt}
	desc2 := RoomDescription{id: "BBB222", phase: PHASE_WAITING, playersCount: 1, maxPlayers: 2, questions: 5, createdAt: createdAt}

	room1 := &MockRoom{}
	room1Loop := make(chan struct{})
	room1Ticks := make(chan time.Time, 16)
	room1Pings := make(chan struct{}, 16)
	room1Joins := make(chan roomJoinRequest, 16)
	room1.On("SetParentLobby", lobby).Return().Once()
	room1.On("SetId", "AAA111").Return().Once()
	room1.On("Description").Return(desc1)
	room1.On("GameLoop").Run(func(mock.Arguments) { close(room1Loop) }).Return().Once()
	room1.On("Tick", mock.Anything).Run(func(args mock.Arguments) {
		room1Ticks <- args.Get(0).(time.Time)
	}).Return()
	room1.On("PingPlayers").Run(func(mock.Arguments) {
		room1Pings <- struct{}{}
	}).Return()

	t.Run("add room 1", func(t *testing.T) {
		mockIdGenerator.On("Generate").Return("AAA111", nil).Once()

		req := NewAddRoomRequest(room1)
		lobby.RequestAddAndRunRoom(ctx, req)
		assert.NoError(t, <-req.errChan)
		<-room1Loop

		tick := time.Now()
		ticker <- tick
		pingTicker <- time.Now()
		assert.Equal(t, tick, <-room1Ticks)
		<-room1Pings

		assert.ElementsMatch(t, []RoomDescription{desc1}, lobby.ListJoinableRooms(ctx))
	})

	t.Run("join by code reserves the seat", func(t *testing.T) {
		joiner := &MockPlayer{}
		room1.On("RequestJoin", mock.Anything).Run(func(args mock.Arguments) {
			room1Joins <- args.Get(0).(roomJoinRequest)
		}).Return().Once()

		jreq := NewRoomJoinRequest("AAA111", joiner)
		lobby.ForwardPlayerJoinRequestToRoom(ctx, jreq)

		forwarded := <-room1Joins
		assert.Equal(t, "AAA111", forwarded.roomId)
		assert.Same(t, joiner, forwarded.player)

		// the cached seat is taken until the room says otherwise
		assert.Empty(t, lobby.ListJoinableRooms(ctx))
	})

	t.Run("join with an unknown code", func(t *testing.T) {
		jreq := NewRoomJoinRequest("NOPE99", &MockPlayer{})
		lobby.ForwardPlayerJoinRequestToRoom(ctx, jreq)
		assert.ErrorIs(t, <-jreq.errChan, ErrRoomNotFound)
	})

	t.Run("room description update reopens the seat", func(t *testing.T) {
		lobby.RequestUpdateDescription(desc1)
		assert.Eventually(t, func() bool {
			return len(lobby.ListJoinableRooms(ctx)) == 1
		}, time.Second, time.Millisecond*5)
	})

	t.Run("random join takes the last open seat", func(t *testing.T) {
		joiner := &MockPlayer{}
		room1.On("RequestJoin", mock.Anything).Run(func(args mock.Arguments) {
			room1Joins <- args.Get(0).(roomJoinRequest)
		}).Return().Once()

		rjreq := NewRandomJoinRequest(joiner)
		lobby.ForwardRandomJoinRequest(ctx, rjreq)

		forwarded := <-room1Joins
		assert.Equal(t, "AAA111", forwarded.roomId)
		assert.Same(t, joiner, forwarded.player)

		// the last seat is reserved, nothing is joinable anymore
		assert.Empty(t, lobby.ListJoinableRooms(ctx))
	})

	t.Run("random join with no seats spins up a fresh room", func(t *testing.T) {
		mockIdGenerator.On("Generate").Return("BBB222", nil).Once()
		room2Loop := make(chan struct{})
		room2.On("SetParentLobby", lobby).Return().Once()
		room2.On("SetId", "BBB222").Return().Once()
		room2.On("Description").Return(desc2)
		room2.On("GameLoop").Run(func(mock.Arguments) { close(room2Loop) }).Return().Once()
		room2.On("Tick", mock.Anything).Return()
		room2.On("PingPlayers").Return()

		rjreq := NewRandomJoinRequest(&MockPlayer{})
		lobby.ForwardRandomJoinRequest(ctx, rjreq)
		assert.NoError(t, <-rjreq.errChan)
		<-room2Loop

		assert.ElementsMatch(t, []RoomDescription{desc2}, lobby.ListJoinableRooms(ctx))
	})

	t.Run("remove room 1", func(t *testing.T) {
		released := make(chan struct{})
		room1.On("CloseAndRelease").Run(func(mock.Arguments) { close(released) }).Return().Once()
		mockIdGenerator.On("Dispose", "AAA111").Return().Once()

		lobby.RemoveRoom("AAA111")
		<-released

		assert.ElementsMatch(t, []RoomDescription{desc2}, lobby.ListJoinableRooms(ctx))
	})

	t.Run("remove room 2", func(t *testing.T) {
		released := make(chan struct{})
		room2.On("CloseAndRelease").Run(func(mock.Arguments) { close(released) }).Return().Once()
		mockIdGenerator.On("Dispose", "BBB222").Return().Once()

		lobby.RemoveRoom("BBB222")
		<-released

		assert.Empty(t, lobby.ListJoinableRooms(ctx))
	})

	mockIdGenerator.AssertExpectations(t)
	mockTickerCreator.AssertExpectations(t)
	room1.AssertExpectations(t)
	room2.AssertExpectations(t)
}

// A freshly created room must be advertised as joinable before anyone
// else touches it, so two players who both ask for a random match end up
// in the same room instead of each opening their own.
func TestLobby_RandomJoinMatchesPlayersIntoOneRoom(t *testing.T) {
	ctx := context.Background()
	source := &MockQuestionSource{}
	tickerGen := NewTickerGen()

	lobby := NewLobby(NewCodegen(), &tickerGen, DefaultRoomFactory(nil, source))
	startedSignal := make(chan struct{})
	go lobby.LobbyActor(startedSignal)
	<-startedSignal

	newJoiner := func(id, name string) (*MockPlayer, chan []byte) {
		sent := make(chan []byte, 16)
		p := &MockPlayer{}
		p.On("ID").Return(id)
		p.On("Username").Return(name)
		p.On("SetRoom", mock.Anything).Return()
		p.On("Send", mock.Anything).Run(func(args mock.Arguments) {
			sent <- args.Get(0).([]byte)
		}).Return(nil)
		return p, sent
	}

	p1, sent1 := newJoiner("p-1", "amara")
	rj1 := NewRandomJoinRequest(p1)
	lobby.ForwardRandomJoinRequest(ctx, rj1)
	require.NoError(t, <-rj1.errChan)

	first := decodePacket(t, receiveWithin(t, sent1))
	require.Equal(t, SERVER_ROOM_SNAPSHOT, first.Type)
	assert.Equal(t, "waiting", first.Snapshot.Phase)

	// the fresh room is visible before anyone joins it by code
	joinable := lobby.ListJoinableRooms(ctx)
	require.Len(t, joinable, 1)
	assert.Equal(t, first.Snapshot.RoomCode, joinable[0].id)

	p2, sent2 := newJoiner("p-2", "bodhi")
	rj2 := NewRandomJoinRequest(p2)
	lobby.ForwardRandomJoinRequest(ctx, rj2)
	require.NoError(t, <-rj2.errChan)

	second := decodePacket(t, receiveWithin(t, sent2))
	require.Equal(t, SERVER_ROOM_SNAPSHOT, second.Type)
	assert.Equal(t, first.Snapshot.RoomCode, second.Snapshot.RoomCode)
	assert.Len(t, second.Snapshot.Players, 2)

	assert.Empty(t, lobby.ListJoinableRooms(ctx))
}

// A grace reconnect and a rejected join both keep the lobby's cached seat
// count honest, so a room with free seats stays listed.
func TestLobby_ReconnectKeepsTheSeatOpen(t *testing.T) {
	ctx := context.Background()
	source := &MockQuestionSource{}
	tickerGen := NewTickerGen()
	factory := func(host Player) Room { return NewRoom(host, 3, 5, nil, source) }

	lobby := NewLobby(NewCodegen(), &tickerGen, factory)
	startedSignal := make(chan struct{})
	go lobby.LobbyActor(startedSignal)
	<-startedSignal

	hostRooms := make(chan Room, 1)
	hostSent := make(chan []byte, 16)
	host := &MockPlayer{}
	host.On("ID").Return("h-1")
	host.On("Username").Return("hana")
	host.On("SetRoom", mock.Anything).Run(func(args mock.Arguments) {
		hostRooms <- args.Get(0).(Room)
	}).Return()
	host.On("Send", mock.Anything).Run(func(args mock.Arguments) {
		hostSent <- args.Get(0).([]byte)
	}).Return(nil)

	newGuestConn := func() *MockPlayer {
		p := &MockPlayer{}
		p.On("ID").Return("g-7")
		p.On("Username").Return("goro")
		p.On("SetRoom", mock.Anything).Return()
		p.On("Send", mock.Anything).Return(nil)
		return p
	}

	rj := NewRandomJoinRequest(host)
	lobby.ForwardRandomJoinRequest(ctx, rj)
	require.NoError(t, <-rj.errChan)
	r := <-hostRooms
	require.Equal(t, SERVER_ROOM_SNAPSHOT, decodePacket(t, receiveWithin(t, hostSent)).Type)

	joinable := lobby.ListJoinableRooms(ctx)
	require.Len(t, joinable, 1)
	code := joinable[0].id

	guest := newGuestConn()
	jreq := NewRoomJoinRequest(code, guest)
	lobby.ForwardPlayerJoinRequestToRoom(ctx, jreq)
	require.NoError(t, <-jreq.errChan)
	require.Equal(t, SERVER_PLAYER_JOINED, decodePacket(t, receiveWithin(t, hostSent)).Type)

	// guest drops, the seat is held under grace
	r.RemoveMe(ctx, guest)
	require.Equal(t, SERVER_PLAYER_DISCONNECTED, decodePacket(t, receiveWithin(t, hostSent)).Type)

	// the reconnect reclaims the held seat, it must not burn a fresh one
	rejoin := NewRoomJoinRequest(code, newGuestConn())
	lobby.ForwardPlayerJoinRequestToRoom(ctx, rejoin)
	require.NoError(t, <-rejoin.errChan)

	stillOpen := func() bool {
		rooms := lobby.ListJoinableRooms(ctx)
		return len(rooms) == 1 && rooms[0].playersCount == 2
	}
	assert.Eventually(t, stillOpen, time.Second, time.Millisecond*5)

	// a rejected join must hand its reservation back too
	dup := NewRoomJoinRequest(code, newGuestConn())
	lobby.ForwardPlayerJoinRequestToRoom(ctx, dup)
	assert.ErrorIs(t, <-dup.errChan, ErrInvalidTransition)
	assert.Eventually(t, stillOpen, time.Second, time.Millisecond*5)
}

func decodePacket(t *testing.T, data []byte) *ServerPacket {
	t.Helper()
	packet := &ServerPacket{}
	require.NoError(t, json.Unmarshal(data, packet))
	return packet
}

func TestLobby_CodeAllocationFailure(t *testing.T) {
	mockTickerCreator := &MockPeriodicTickerChannelCreator{}
	mockTickerCreator.On("Create", mock.Anything).Return(make(chan time.Time))
	mockIdGenerator := &MockUniqueIdGenerator{}
	mockIdGenerator.On("Generate").Return("", ErrCodeExhausted).Once()

	lobby := NewLobby(mockIdGenerator, mockTickerCreator, nil)
	startedSignal := make(chan struct{})
	go lobby.LobbyActor(startedSignal)
	<-startedSignal

	req := NewAddRoomRequest(&MockRoom{})
	lobby.RequestAddAndRunRoom(context.Background(), req)
	assert.ErrorIs(t, <-req.errChan, ErrCodeExhausted)
	assert.Empty(t, lobby.ListJoinableRooms(context.Background()))

	mockIdGenerator.AssertExpectations(t)
}
