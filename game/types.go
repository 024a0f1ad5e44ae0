package game

import (
	"sync"
	"time"
)

type RoomPhase int

const (
	PHASE_INITIAL RoomPhase = iota
	PHASE_WAITING
	PHASE_PLAYING
	PHASE_FINISHED
)

func (p RoomPhase) String() string {
	switch p {
	case PHASE_INITIAL:
		return "initial"
	case PHASE_WAITING:
		return "waiting"
	case PHASE_PLAYING:
		return "playing"
	case PHASE_FINISHED:
		return "finished"
	}
	return "unknown"
}

// --- Room tuning ---
const (
	MIN_CAPACITY          = 2
	MAX_CAPACITY          = 8
	DEFAULT_CAPACITY      = 2
	DEFAULT_QUESTIONS     = 5
	MAX_QUESTIONS         = 20
	POINTS_PER_CORRECT    = 100
	DEFAULT_QUESTION_TIME = time.Second * 15
	DISCONNECT_GRACE      = time.Second * 30
	WAITING_IDLE_TIMEOUT  = time.Hour
	FINISHED_IDLE_TIMEOUT = time.Minute
)

type Question struct {
	Id               string
	Prompt           string
	Options          []string
	CorrectOption    int // -1 when the content is human-judged
	MediaRef         string
	TimeLimitSeconds int
}

func (q Question) timeLimit() time.Duration {
	if q.TimeLimitSeconds <= 0 {
		return DEFAULT_QUESTION_TIME
	}
	return time.Duration(q.TimeLimitSeconds) * time.Second
}

type connState int

const (
	CONN_CONNECTED connState = iota
	CONN_GRACE
)

type playerState struct {
	player        Player
	id            string
	username      string
	isHost        bool
	joinedAt      time.Time
	conn          connState
	graceDeadline time.Time
}

type RoomDescription struct {
	id           string
	phase        RoomPhase
	playersCount int
	maxPlayers   int
	questions    int
	createdAt    time.Time
}

type roomJoinRequest struct {
	roomId  string
	player  Player
	errChan chan error
}

func NewRoomJoinRequest(roomId string, player Player) roomJoinRequest {
	return roomJoinRequest{roomId: roomId, player: player, errChan: make(chan error, 1)}
}

type addRoomRequest struct {
	room    Room
	errChan chan error
}

func NewAddRoomRequest(r Room) addRoomRequest {
	return addRoomRequest{room: r, errChan: make(chan error, 1)}
}

type randomJoinRequest struct {
	player  Player
	errChan chan error
}

func NewRandomJoinRequest(player Player) randomJoinRequest {
	return randomJoinRequest{player: player, errChan: make(chan error, 1)}
}

type ClientPacketEnvelope struct {
	clientPacket *ClientPacket
	from         Player
}

type dataSendTask struct {
	to   Player
	data []byte
}

type pingSendTask struct {
	to Player
}

type room struct {
	id        string
	createdAt time.Time
	phase     RoomPhase

	capacity       int
	questionsCount int

	roster       []*playerState
	seq          *sequencer
	board        *scoreboard
	chatSeq      int64
	fetchPending bool

	nextTick time.Time

	parentLobby Lobby
	store       *storeWriter
	questions   QuestionSource

	dataSendTasks []dataSendTask
	pingSendTasks []pingSendTask

	inbox       chan ClientPacketEnvelope
	ticks       chan time.Time
	pingPlayers chan struct{}
	joinReqs    chan roomJoinRequest
	removals    chan Player
	fetches     chan questionFetch
	done        chan struct{}
	closeOnce   sync.Once
}

// questionFetch carries the outcome of an off-loop question bank read
// back into the room actor.
type questionFetch struct {
	questions   []Question
	err         error
	requestedBy string
}
