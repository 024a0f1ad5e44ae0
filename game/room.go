package game

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"quizroom/domain"
)

var ErrRoomCorrupted = errors.New("room-corrupted")

// NewRoom builds a room with the creating player already seated as host.
// The room does nothing until the lobby assigns it a code and starts
// GameLoop; from then on every mutation happens inside that single
// goroutine.
func NewRoom(host Player, capacity, questionsCount int, store *storeWriter, questions QuestionSource) *room {
	createdAt := time.Now()
	r := &room{
		createdAt:      createdAt,
		phase:          PHASE_INITIAL,
		capacity:       capacity,
		questionsCount: questionsCount,
		roster:         make([]*playerState, 0, capacity),
		nextTick:       createdAt.Add(WAITING_IDLE_TIMEOUT),
		store:          store,
		questions:      questions,
		inbox:          make(chan ClientPacketEnvelope, 1024),
		ticks:          make(chan time.Time, 24),
		pingPlayers:    make(chan struct{}, 1),
		joinReqs:       make(chan roomJoinRequest, 16),
		removals:       make(chan Player, 64),
		fetches:        make(chan questionFetch, 1),
		done:           make(chan struct{}),
	}
	if host != nil {
		r.roster = append(r.roster, &playerState{
			player:   host,
			id:       host.ID(),
			username: host.Username(),
			isHost:   true,
			joinedAt: createdAt,
		})
		host.SetRoom(r)
	}
	return r
}

// --- Lobby/transport facing API. Everything here only pushes onto the
// room's channels; the loop below is the sole mutator. ---

func (r *room) SetId(id string) {
	r.id = id
}

func (r *room) SetParentLobby(l Lobby) {
	r.parentLobby = l
}

func (r *room) Description() RoomDescription {
	return RoomDescription{
		id:           r.id,
		phase:        r.phase,
		playersCount: len(r.roster),
		maxPlayers:   r.capacity,
		questions:    r.questionsCount,
		createdAt:    r.createdAt,
	}
}

func (r *room) Tick(now time.Time) {
	select {
	case r.ticks <- now:
	default:
	}
}

func (r *room) PingPlayers() {
	select {
	case r.pingPlayers <- struct{}{}:
	default:
	}
}

func (r *room) Send(ctx context.Context, e ClientPacketEnvelope) {
	select {
	case r.inbox <- e:
	case <-ctx.Done():
	case <-r.done:
	}
}

func (r *room) RequestJoin(jreq roomJoinRequest) {
	select {
	case r.joinReqs <- jreq:
	case <-r.done:
		jreq.errChan <- ErrRoomNotFound
	}
}

func (r *room) RemoveMe(ctx context.Context, p Player) {
	select {
	case r.removals <- p:
	case <-ctx.Done():
	case <-r.done:
	}
}

func (r *room) CloseAndRelease() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

// --- The actor loop ---

func (r *room) GameLoop() {
	r.begin()
	r.flushSendTasks()

	for {
		select {
		case <-r.done:
			return
		case e := <-r.inbox:
			r.handleEnvelope(e)
		case now := <-r.ticks:
			r.handleTick(now)
		case <-r.pingPlayers:
			r.handlePingPlayers()
		case jreq := <-r.joinReqs:
			r.handleJoinRequest(jreq)
		case p := <-r.removals:
			r.handleDisconnect(p)
		case f := <-r.fetches:
			r.handleQuestionsFetched(f)
		}
		r.flushSendTasks()
	}
}

// begin moves the freshly registered room into its waiting phase and
// seats the creator durably.
func (r *room) begin() {
	r.phase = PHASE_WAITING

	if len(r.roster) > 0 {
		host := r.roster[0]
		r.persist("create room", func(ctx context.Context, s RoomStore) error {
			if err := s.CreateRoom(ctx, r.id, host.id); err != nil {
				return err
			}
			return s.AddToRoom(ctx, r.id, host.id, true)
		})
		r.sendTo(host.player, MakePacketRoomSnapshot(r.snapshot()))
	}
	log.Info().Str("room", r.id).Msg("room opened")
	r.updateDescription()
}

func (r *room) handleEnvelope(e ClientPacketEnvelope) {
	switch e.clientPacket.Type {
	case CLIENT_START_GAME:
		r.handleStartGame(e.from)
	case CLIENT_SUBMIT_ANSWER:
		if e.clientPacket.SubmitAnswer != nil {
			r.handleSubmitAnswer(e.clientPacket.SubmitAnswer, e.from)
		}
	case CLIENT_SEND_MESSAGE:
		if e.clientPacket.SendMessage != nil {
			r.handleChatMessage(e.clientPacket.SendMessage, e.from)
		}
	case CLIENT_PLAY_AGAIN:
		r.handlePlayAgain(e.from)
	case CLIENT_LEAVE_ROOM:
		r.handleLeave(e.from)
	}
}

func (r *room) handleJoinRequest(jreq roomJoinRequest) {
	// the lobby reserved a seat when it forwarded this request; every
	// outcome pushes the real count back so the reservation never sticks
	if existing := r.stateOf(jreq.player.ID()); existing != nil {
		if existing.conn == CONN_GRACE {
			r.handleReconnect(existing, jreq)
			return
		}
		jreq.errChan <- ErrInvalidTransition
		r.updateDescription()
		return
	}

	if r.phase != PHASE_WAITING {
		jreq.errChan <- ErrRoomClosed
		r.updateDescription()
		return
	}
	if len(r.roster) >= r.capacity {
		jreq.errChan <- ErrRoomFull
		r.updateDescription()
		return
	}

	state := &playerState{
		player:   jreq.player,
		id:       jreq.player.ID(),
		username: jreq.player.Username(),
		isHost:   len(r.roster) == 0,
		joinedAt: time.Now(),
	}
	r.roster = append(r.roster, state)
	jreq.player.SetRoom(r)

	playerId := state.id
	isHost := state.isHost
	r.persist("add member", func(ctx context.Context, s RoomStore) error {
		return s.AddToRoom(ctx, r.id, playerId, isHost)
	})

	r.broadcastExcept(state, MakePacketPlayerJoined(state.id, state.username))
	r.sendTo(jreq.player, MakePacketRoomSnapshot(r.snapshot()))
	jreq.errChan <- nil

	log.Info().Str("room", r.id).Str("player", state.username).Msg("player joined")
	r.checkInvariants()
	r.updateDescription()
}

// handleReconnect swaps a fresh connection into a seat still held under
// the disconnect grace period. Allowed in any phase.
func (r *room) handleReconnect(state *playerState, jreq roomJoinRequest) {
	state.player = jreq.player
	state.conn = CONN_CONNECTED
	state.graceDeadline = time.Time{}
	jreq.player.SetRoom(r)

	r.broadcastExcept(state, MakePacketPlayerJoined(state.id, state.username))
	r.sendTo(jreq.player, MakePacketRoomSnapshot(r.snapshot()))
	jreq.errChan <- nil

	log.Info().Str("room", r.id).Str("player", state.username).Msg("player reconnected")
	r.updateDescription()
}

func (r *room) handleStartGame(from Player) {
	state := r.stateOf(from.ID())
	if state == nil {
		r.sendTo(from, MakePacketError(ErrNotInRoom))
		return
	}
	if r.phase != PHASE_WAITING || r.fetchPending {
		r.sendTo(from, MakePacketError(ErrInvalidTransition))
		return
	}
	if !state.isHost {
		r.sendTo(from, MakePacketError(ErrNotHost))
		return
	}
	if len(r.roster) < r.capacity {
		r.sendTo(from, MakePacketError(ErrInsufficientPlayers))
		return
	}

	// the question bank read must not stall the loop, so it runs in its
	// own goroutine and reports back through the fetches channel
	r.fetchPending = true
	requestedBy := state.id
	source := r.questions
	count := r.questionsCount
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
		questions, err := source.GetRandomQuestions(ctx, count)
		cancel()
		select {
		case r.fetches <- questionFetch{questions: questions, err: err, requestedBy: requestedBy}:
		case <-r.done:
		}
	}()
}

// handleQuestionsFetched finishes a start request once the question set
// arrives. The roster may have changed while the fetch ran, so the start
// conditions are checked again.
func (r *room) handleQuestionsFetched(f questionFetch) {
	r.fetchPending = false
	if r.phase != PHASE_WAITING {
		return
	}
	state := r.stateOf(f.requestedBy)

	if f.err != nil || len(f.questions) == 0 {
		log.Error().Err(f.err).Str("room", r.id).Msg("question bank unavailable")
		if state != nil {
			r.sendTo(state.player, MakePacketError(domain.ErrPersistenceUnavailable))
		}
		return
	}
	if state == nil || !state.isHost {
		return
	}
	if len(r.roster) < r.capacity {
		r.sendTo(state.player, MakePacketError(ErrInsufficientPlayers))
		return
	}

	now := time.Now()
	r.board = newScoreboard(r.roster)
	r.seq = newSequencer(f.questions, now)
	r.phase = PHASE_PLAYING
	r.nextTick = r.seq.deadline

	r.persist("room playing", func(ctx context.Context, s RoomStore) error {
		return s.UpdateRoomStatus(ctx, r.id, "playing")
	})

	r.broadcast(MakePacketGameStarted())
	r.broadcast(MakePacketRoomSnapshot(r.snapshot()))
	r.broadcast(MakePacketQuestion(*r.seq.current(), r.seq.index, r.seq.total(), r.seq.deadline))

	log.Info().Str("room", r.id).Int("questions", r.seq.total()).Msg("game started")
	r.updateDescription()
}

func (r *room) handleSubmitAnswer(payload *SubmitAnswerPayload, from Player) {
	state := r.stateOf(from.ID())
	if state == nil {
		r.sendTo(from, MakePacketError(ErrNotInRoom))
		return
	}
	if r.phase != PHASE_PLAYING || r.seq == nil {
		r.sendTo(from, MakePacketError(ErrInvalidTransition))
		return
	}

	q := r.seq.current()
	if q == nil || payload.QuestionId != q.Id || r.seq.expired(time.Now()) {
		r.sendTo(from, MakePacketError(ErrQuestionExpired))
		return
	}
	if err := r.seq.submit(state.id, payload.Option); err != nil {
		r.sendTo(from, MakePacketError(err))
		return
	}

	r.broadcast(MakePacketPlayerAnswered(state.id, q.Id))

	if r.seq.answeredCount() >= r.eligibleCount() {
		r.resolveQuestion(time.Now())
	}
}

// resolveQuestion credits everyone who picked the correct option, reveals
// the result and advances. Players with no submission get zero credit.
// Called either when the last answer lands or when the timer expires;
// whichever happens first wins, the loser is a no-op by construction of
// the loop.
func (r *room) resolveQuestion(now time.Time) {
	q := r.seq.current()
	if q == nil {
		return
	}

	deltas := make([]ScoreDelta, 0, len(r.roster))
	for _, ps := range r.roster {
		delta := 0
		if answer, ok := r.seq.answers[ps.id]; ok && q.CorrectOption >= 0 && answer == q.CorrectOption {
			delta = POINTS_PER_CORRECT
		}
		r.board.credit(ps.id, delta)
		deltas = append(deltas, ScoreDelta{
			PlayerId: ps.id,
			Username: ps.username,
			Delta:    delta,
			Points:   r.board.points(ps.id),
		})
	}
	r.broadcast(MakePacketQuestionResult(q.Id, q.CorrectOption, deltas))

	next := r.seq.advance(now)
	if next == nil {
		r.finishGame(now)
		return
	}
	r.nextTick = r.seq.deadline
	r.broadcast(MakePacketQuestion(*next, r.seq.index, r.seq.total(), r.seq.deadline))
}

func (r *room) finishGame(now time.Time) {
	r.phase = PHASE_FINISHED
	r.nextTick = now.Add(FINISHED_IDLE_TIMEOUT)

	ranking := r.board.snapshotSorted()
	r.broadcast(MakePacketGameOver(ranking))

	r.persist("room finished", func(ctx context.Context, s RoomStore) error {
		if err := s.UpdateRoomStatus(ctx, r.id, "finished"); err != nil {
			return err
		}
		for _, entry := range ranking {
			if err := s.SaveGameResult(ctx, r.id, entry.PlayerId, entry.Points); err != nil {
				return err
			}
		}
		return nil
	})

	log.Info().Str("room", r.id).Msg("game finished")
	r.updateDescription()
}

func (r *room) handlePlayAgain(from Player) {
	state := r.stateOf(from.ID())
	if state == nil {
		r.sendTo(from, MakePacketError(ErrNotInRoom))
		return
	}
	if r.phase != PHASE_FINISHED {
		r.sendTo(from, MakePacketError(ErrInvalidTransition))
		return
	}
	if !state.isHost {
		r.sendTo(from, MakePacketError(ErrNotHost))
		return
	}

	r.seq = nil
	r.board = nil
	r.phase = PHASE_WAITING
	r.nextTick = time.Now().Add(WAITING_IDLE_TIMEOUT)

	r.persist("room waiting", func(ctx context.Context, s RoomStore) error {
		return s.UpdateRoomStatus(ctx, r.id, "waiting")
	})

	r.broadcast(MakePacketRoomSnapshot(r.snapshot()))
	log.Info().Str("room", r.id).Msg("room reset for another game")
	r.updateDescription()
}

func (r *room) handleChatMessage(payload *SendMessagePayload, from Player) {
	state := r.stateOf(from.ID())
	if state == nil {
		r.sendTo(from, MakePacketError(ErrNotInRoom))
		return
	}
	if payload.Text == "" {
		return
	}

	r.chatSeq++
	r.broadcast(MakePacketChatMessage(r.chatSeq, state.id, state.username, payload.Text))
}

func (r *room) handleLeave(from Player) {
	state := r.stateOf(from.ID())
	if state == nil {
		return
	}
	r.removePlayerState(state)
}

// handleDisconnect marks a dropped connection instead of removing the
// player outright; the seat survives until the grace deadline.
func (r *room) handleDisconnect(p Player) {
	state := r.stateOf(p.ID())
	if state == nil || state.player != p {
		// a pump from a connection that was already replaced
		return
	}
	if state.conn == CONN_GRACE {
		return
	}
	state.conn = CONN_GRACE
	state.graceDeadline = time.Now().Add(DISCONNECT_GRACE)
	r.broadcastExcept(state, MakePacketPlayerDisconnected(state.id, state.username))
	log.Info().Str("room", r.id).Str("player", state.username).Msg("player disconnected, grace started")
}

func (r *room) removePlayerState(state *playerState) {
	for i, ps := range r.roster {
		if ps == state {
			r.roster = append(r.roster[:i], r.roster[i+1:]...)
			break
		}
	}
	state.player.CancelAndRelease()
	if r.board != nil {
		delete(r.board.entries, state.id)
	}

	playerId := state.id
	r.persist("remove member", func(ctx context.Context, s RoomStore) error {
		return s.RemoveByPlayerId(ctx, playerId)
	})

	r.broadcast(MakePacketPlayerLeft(state.id, state.username))
	log.Info().Str("room", r.id).Str("player", state.username).Msg("player left")

	if len(r.roster) == 0 {
		r.teardown()
		return
	}

	if state.isHost {
		r.migrateHost()
	}

	// the departed player may have been the last one holding up the question
	if r.phase == PHASE_PLAYING && r.seq != nil && r.seq.answeredCount() >= r.eligibleCount() {
		r.resolveQuestion(time.Now())
	}

	r.checkInvariants()
	r.updateDescription()
}

// migrateHost hands the host seat to the remaining player with the
// earliest joinedAt. The roster keeps join order, so that is the head.
func (r *room) migrateHost() {
	next := r.roster[0]
	for _, ps := range r.roster[1:] {
		if ps.joinedAt.Before(next.joinedAt) {
			next = ps
		}
	}
	next.isHost = true

	playerId := next.id
	r.persist("migrate host", func(ctx context.Context, s RoomStore) error {
		return s.UpdateHost(ctx, r.id, playerId)
	})

	r.broadcast(MakePacketHostChanged(next.id, next.username))
	log.Info().Str("room", r.id).Str("player", next.username).Msg("host migrated")
}

func (r *room) handleTick(now time.Time) {
	// expired disconnect graces first, they may hand over the host seat
	for _, ps := range r.gracedOut(now) {
		r.removePlayerState(ps)
	}
	if r.phase == PHASE_INITIAL {
		return
	}
	if now.Before(r.nextTick) {
		return
	}

	switch r.phase {
	case PHASE_WAITING:
		log.Info().Str("room", r.id).Msg("waiting room idled out")
		r.broadcast(MakePacketError(ErrRoomClosed))
		r.teardown()
	case PHASE_PLAYING:
		r.resolveQuestion(now)
	case PHASE_FINISHED:
		r.teardown()
	}
}

func (r *room) gracedOut(now time.Time) []*playerState {
	var out []*playerState
	for _, ps := range r.roster {
		if ps.conn == CONN_GRACE && !now.Before(ps.graceDeadline) {
			out = append(out, ps)
		}
	}
	return out
}

func (r *room) handlePingPlayers() {
	for _, ps := range r.roster {
		if ps.conn == CONN_CONNECTED {
			r.pingSendTasks = append(r.pingSendTasks, pingSendTask{to: ps.player})
		}
	}
}

func (r *room) teardown() {
	for _, ps := range r.roster {
		ps.player.CancelAndRelease()
	}
	r.persist("delete room", func(ctx context.Context, s RoomStore) error {
		return s.DeleteRoom(ctx, r.id)
	})
	if r.parentLobby != nil {
		r.parentLobby.RemoveRoom(r.id)
	}
	log.Info().Str("room", r.id).Msg("room torn down")
}

// checkInvariants runs after every roster mutation. A violation means a
// bug, not a race, so the room is shut down rather than patched up.
func (r *room) checkInvariants() {
	hosts := 0
	for _, ps := range r.roster {
		if ps.isHost {
			hosts++
		}
	}
	violated := hosts > 1 || (hosts == 0 && len(r.roster) > 0) || len(r.roster) > r.capacity
	if !violated {
		return
	}
	log.Error().Str("room", r.id).Int("hosts", hosts).Int("roster", len(r.roster)).Msg("room invariant violated, tearing down")
	r.broadcast(MakePacketError(ErrRoomCorrupted))
	r.teardown()
}

// --- helpers ---

func (r *room) stateOf(playerId string) *playerState {
	for _, ps := range r.roster {
		if ps.id == playerId {
			return ps
		}
	}
	return nil
}

func (r *room) eligibleCount() int {
	if r.board == nil {
		return 0
	}
	return len(r.board.entries)
}

func (r *room) snapshot() *RoomSnapshotPayload {
	players := make([]SnapshotPlayer, 0, len(r.roster))
	for _, ps := range r.roster {
		points := 0
		if r.board != nil {
			points = r.board.points(ps.id)
		}
		players = append(players, SnapshotPlayer{
			Id:        ps.id,
			Username:  ps.username,
			IsHost:    ps.isHost,
			Connected: ps.conn == CONN_CONNECTED,
			Points:    points,
		})
	}
	questionIndex := 0
	if r.seq != nil {
		questionIndex = r.seq.index
	}
	return &RoomSnapshotPayload{
		RoomCode:       r.id,
		Phase:          r.phase.String(),
		Capacity:       r.capacity,
		Players:        players,
		QuestionIndex:  questionIndex,
		TotalQuestions: r.questionsCount,
		NextTick:       r.nextTick.UnixMilli(),
	}
}

func (r *room) sendTo(p Player, packet *ServerPacket) {
	r.dataSendTasks = append(r.dataSendTasks, dataSendTask{to: p, data: marshalPacket(packet)})
}

func (r *room) broadcast(packet *ServerPacket) {
	r.broadcastExcept(nil, packet)
}

func (r *room) broadcastExcept(except *playerState, packet *ServerPacket) {
	data := marshalPacket(packet)
	for _, ps := range r.roster {
		if ps == except || ps.conn != CONN_CONNECTED {
			continue
		}
		r.dataSendTasks = append(r.dataSendTasks, dataSendTask{to: ps.player, data: data})
	}
}

func (r *room) flushSendTasks() {
	for _, task := range r.dataSendTasks {
		if err := task.to.Send(task.data); err != nil {
			log.Debug().Str("room", r.id).Str("player", task.to.Username()).Err(err).Msg("dropping outbound packet")
		}
	}
	r.dataSendTasks = r.dataSendTasks[:0]

	for _, task := range r.pingSendTasks {
		task.to.Ping()
	}
	r.pingSendTasks = r.pingSendTasks[:0]
}

func (r *room) updateDescription() {
	if r.parentLobby != nil {
		r.parentLobby.RequestUpdateDescription(r.Description())
	}
}

func (r *room) persist(op string, fn func(ctx context.Context, s RoomStore) error) {
	if r.store == nil {
		return
	}
	r.store.Enqueue(op, fn)
}
