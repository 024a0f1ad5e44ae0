package game

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
)

// lobby is the registry of live rooms. It owns code allocation, lookup
// by code, the join-random scan and the shared tickers. All of that is
// serialized through LobbyActor, so two concurrent joins can never claim
// the same final seat.
type lobby struct {
	rooms        map[string]Room
	order        []string
	descriptions map[string]RoomDescription

	addRoomChan    chan addRoomRequest
	removeRoomChan chan string
	descUpdate     chan RoomDescription
	roomJoinReqs   chan roomJoinRequest
	randomJoinReqs chan randomJoinRequest
	listReqs       chan chan []RoomDescription

	idGenerator   UniqueIdGenerator
	tickerCreator PeriodicTickerChannelCreator
	newRoom       func(host Player) Room
}

func NewLobby(idgen UniqueIdGenerator, tickerCreator PeriodicTickerChannelCreator, newRoom func(host Player) Room) *lobby {
	return &lobby{
		rooms:          map[string]Room{},
		descriptions:   map[string]RoomDescription{},
		addRoomChan:    make(chan addRoomRequest, 32),
		removeRoomChan: make(chan string, 32),
		descUpdate:     make(chan RoomDescription, 256),
		roomJoinReqs:   make(chan roomJoinRequest, 256),
		randomJoinReqs: make(chan randomJoinRequest, 256),
		listReqs:       make(chan chan []RoomDescription, 256),
		idGenerator:    idgen,
		tickerCreator:  tickerCreator,
		newRoom:        newRoom,
	}
}

func (l *lobby) RequestAddAndRunRoom(ctx context.Context, req addRoomRequest) {
	select {
	case l.addRoomChan <- req:
	case <-ctx.Done():
		req.errChan <- ctx.Err()
	}
}

func (l *lobby) ForwardPlayerJoinRequestToRoom(ctx context.Context, jreq roomJoinRequest) {
	select {
	case l.roomJoinReqs <- jreq:
	case <-ctx.Done():
		jreq.errChan <- ctx.Err()
	}
}

func (l *lobby) ForwardRandomJoinRequest(ctx context.Context, jreq randomJoinRequest) {
	select {
	case l.randomJoinReqs <- jreq:
	case <-ctx.Done():
		jreq.errChan <- ctx.Err()
	}
}

func (l *lobby) RequestUpdateDescription(desc RoomDescription) {
	select {
	case l.descUpdate <- desc:
	default:
	}
}

func (l *lobby) RemoveRoom(roomId string) {
	l.removeRoomChan <- roomId
}

func (l *lobby) ListJoinableRooms(ctx context.Context) []RoomDescription {
	respChan := make(chan []RoomDescription, 1)
	select {
	case l.listReqs <- respChan:
		select {
		case resp := <-respChan:
			return resp
		case <-ctx.Done():
			return nil
		}
	case <-ctx.Done():
		return nil
	}
}

func (l *lobby) LobbyActor(started chan struct{}) {
	ticker := l.tickerCreator.Create(time.Second)
	pingTicker := l.tickerCreator.Create(time.Second * 30)

	close(started)

	for {
		select {
		case now := <-ticker:
			for _, r := range l.rooms {
				r.Tick(now)
			}
		case <-pingTicker:
			for _, r := range l.rooms {
				r.PingPlayers()
			}

		case req := <-l.addRoomChan:
			l.handleAddAndRunRoom(req)

		case roomId := <-l.removeRoomChan:
			l.handleRemoveRoom(roomId)

		case desc := <-l.descUpdate:
			if _, live := l.rooms[desc.id]; live {
				l.descriptions[desc.id] = desc
			}

		case listReq := <-l.listReqs:
			l.handleListRooms(listReq)

		case joinReq := <-l.roomJoinReqs:
			l.handleJoinReq(joinReq)

		case randomReq := <-l.randomJoinReqs:
			l.handleRandomJoinReq(randomReq)
		}
	}
}

func (l *lobby) handleAddAndRunRoom(req addRoomRequest) {
	code, err := l.idGenerator.Generate()
	if err != nil {
		log.Error().Err(err).Msg("room code allocation failed")
		req.errChan <- err
		return
	}

	r := req.room
	r.SetParentLobby(l)
	r.SetId(code)

	l.rooms[code] = r
	l.order = append(l.order, code)

	// the room is in its waiting phase by the time it services its first
	// event, so advertise it as joinable right away
	desc := r.Description()
	desc.phase = PHASE_WAITING
	l.descriptions[code] = desc

	go r.GameLoop()
	req.errChan <- nil
	log.Info().Str("room", code).Msg("room registered")
}

func (l *lobby) handleRemoveRoom(roomId string) {
	room, ok := l.rooms[roomId]
	if !ok {
		return
	}
	delete(l.rooms, roomId)
	delete(l.descriptions, roomId)
	if i := slices.Index(l.order, roomId); i >= 0 {
		l.order = slices.Delete(l.order, i, i+1)
	}
	room.CloseAndRelease()
	l.idGenerator.Dispose(roomId)
	log.Info().Str("room", roomId).Msg("room unregistered")
}

func (l *lobby) handleListRooms(req chan []RoomDescription) {
	joinable := make([]RoomDescription, 0, len(l.order))
	for _, code := range l.order {
		desc := l.descriptions[code]
		if desc.phase == PHASE_WAITING && desc.playersCount < desc.maxPlayers {
			joinable = append(joinable, desc)
		}
	}
	req <- joinable
}

func (l *lobby) handleJoinReq(joinReq roomJoinRequest) {
	room, ok := l.rooms[joinReq.roomId]
	if !ok {
		joinReq.errChan <- ErrRoomNotFound
		return
	}
	l.reserveSeat(joinReq.roomId)
	room.RequestJoin(joinReq)
}

// handleRandomJoinReq scans joinable rooms in creation order and seats
// the player in the first match, creating a fresh room when none exists.
// The cached seat count is bumped immediately so a concurrent call
// cannot be routed to the same last seat; the room's own description
// update corrects the cache if the join ultimately fails.
func (l *lobby) handleRandomJoinReq(jreq randomJoinRequest) {
	for _, code := range l.order {
		desc := l.descriptions[code]
		if desc.phase != PHASE_WAITING || desc.playersCount >= desc.maxPlayers {
			continue
		}
		l.reserveSeat(code)
		l.rooms[code].RequestJoin(roomJoinRequest{roomId: code, player: jreq.player, errChan: jreq.errChan})
		return
	}

	room := l.newRoom(jreq.player)
	addReq := NewAddRoomRequest(room)
	l.handleAddAndRunRoom(addReq)
	jreq.errChan <- <-addReq.errChan
}

func (l *lobby) reserveSeat(roomId string) {
	desc := l.descriptions[roomId]
	desc.playersCount++
	l.descriptions[roomId] = desc
}
