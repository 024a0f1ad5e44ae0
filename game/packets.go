package game

import (
	"encoding/json"
	"time"
)

// --- Client -> server ---

const (
	CLIENT_START_GAME    = "start-game"
	CLIENT_SUBMIT_ANSWER = "submit-answer"
	CLIENT_SEND_MESSAGE  = "send-message"
	CLIENT_PLAY_AGAIN    = "play-again"
	CLIENT_LEAVE_ROOM    = "leave-room"
)

type ClientPacket struct {
	Type         string               `json:"type"`
	SubmitAnswer *SubmitAnswerPayload `json:"submitAnswer,omitempty"`
	SendMessage  *SendMessagePayload  `json:"sendMessage,omitempty"`
}

type SubmitAnswerPayload struct {
	QuestionId string `json:"questionId"`
	Option     int    `json:"option"`
}

type SendMessagePayload struct {
	Text string `json:"text"`
}

// --- Server -> client ---

const (
	SERVER_ROOM_SNAPSHOT       = "room-snapshot"
	SERVER_PLAYER_JOINED       = "player-joined"
	SERVER_PLAYER_LEFT         = "player-left"
	SERVER_PLAYER_DISCONNECTED = "player-disconnected"
	SERVER_HOST_CHANGED        = "host-changed"
	SERVER_GAME_STARTED        = "game-started"
	SERVER_QUESTION            = "question"
	SERVER_PLAYER_ANSWERED     = "player-answered"
	SERVER_QUESTION_RESULT     = "question-result"
	SERVER_GAME_OVER           = "game-over"
	SERVER_CHAT_MESSAGE        = "chat-message"
	SERVER_ERROR               = "error"
)

type ServerPacket struct {
	Type            string                 `json:"type"`
	ServerTimestamp int64                  `json:"serverTimestamp"`
	Snapshot        *RoomSnapshotPayload   `json:"snapshot,omitempty"`
	Player          *PlayerEventPayload    `json:"player,omitempty"`
	Question        *QuestionPayload       `json:"question,omitempty"`
	Answered        *PlayerAnsweredPayload `json:"answered,omitempty"`
	Result          *QuestionResultPayload `json:"result,omitempty"`
	GameOver        *GameOverPayload       `json:"gameOver,omitempty"`
	Chat            *ChatMessagePayload    `json:"chat,omitempty"`
	Error           *ErrorPayload          `json:"error,omitempty"`
}

type SnapshotPlayer struct {
	Id        string `json:"id"`
	Username  string `json:"username"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
	Points    int    `json:"points"`
}

type RoomSnapshotPayload struct {
	RoomCode       string           `json:"roomCode"`
	Phase          string           `json:"phase"`
	Capacity       int              `json:"capacity"`
	Players        []SnapshotPlayer `json:"players"`
	QuestionIndex  int              `json:"questionIndex"`
	TotalQuestions int              `json:"totalQuestions"`
	NextTick       int64            `json:"nextTick"`
}

type PlayerEventPayload struct {
	Id       string `json:"id"`
	Username string `json:"username"`
}

type QuestionPayload struct {
	Id        string   `json:"id"`
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options"`
	MediaRef  string   `json:"mediaRef,omitempty"`
	Deadline  int64    `json:"deadline"`
	TimeLimit int      `json:"timeLimitSeconds"`
}

type PlayerAnsweredPayload struct {
	PlayerId   string `json:"playerId"`
	QuestionId string `json:"questionId"`
}

type ScoreDelta struct {
	PlayerId string `json:"playerId"`
	Username string `json:"username"`
	Delta    int    `json:"delta"`
	Points   int    `json:"points"`
}

type QuestionResultPayload struct {
	QuestionId    string       `json:"questionId"`
	CorrectOption int          `json:"correctOption"`
	Deltas        []ScoreDelta `json:"deltas"`
}

type RankedScore struct {
	PlayerId string `json:"playerId"`
	Username string `json:"username"`
	Points   int    `json:"points"`
	Rank     int    `json:"rank"`
}

type GameOverPayload struct {
	Ranking []RankedScore `json:"ranking"`
}

type ChatMessagePayload struct {
	Id       int64  `json:"id"`
	SenderId string `json:"senderId"`
	Sender   string `json:"sender"`
	Text     string `json:"text"`
}

type ErrorPayload struct {
	Code string `json:"code"`
}

func now() int64 {
	return time.Now().UnixMilli()
}

func MakePacketPlayerJoined(id, username string) *ServerPacket {
	return &ServerPacket{Type: SERVER_PLAYER_JOINED, ServerTimestamp: now(), Player: &PlayerEventPayload{Id: id, Username: username}}
}

func MakePacketPlayerLeft(id, username string) *ServerPacket {
	return &ServerPacket{Type: SERVER_PLAYER_LEFT, ServerTimestamp: now(), Player: &PlayerEventPayload{Id: id, Username: username}}
}

func MakePacketPlayerDisconnected(id, username string) *ServerPacket {
	return &ServerPacket{Type: SERVER_PLAYER_DISCONNECTED, ServerTimestamp: now(), Player: &PlayerEventPayload{Id: id, Username: username}}
}

func MakePacketHostChanged(id, username string) *ServerPacket {
	return &ServerPacket{Type: SERVER_HOST_CHANGED, ServerTimestamp: now(), Player: &PlayerEventPayload{Id: id, Username: username}}
}

func MakePacketGameStarted() *ServerPacket {
	return &ServerPacket{Type: SERVER_GAME_STARTED, ServerTimestamp: now()}
}

func MakePacketRoomSnapshot(snapshot *RoomSnapshotPayload) *ServerPacket {
	return &ServerPacket{Type: SERVER_ROOM_SNAPSHOT, ServerTimestamp: now(), Snapshot: snapshot}
}

func MakePacketQuestion(q Question, index, total int, deadline time.Time) *ServerPacket {
	return &ServerPacket{Type: SERVER_QUESTION, ServerTimestamp: now(), Question: &QuestionPayload{
		Id:        q.Id,
		Index:     index,
		Total:     total,
		Prompt:    q.Prompt,
		Options:   q.Options,
		MediaRef:  q.MediaRef,
		Deadline:  deadline.UnixMilli(),
		TimeLimit: int(q.timeLimit() / time.Second),
	}}
}

func MakePacketPlayerAnswered(playerId, questionId string) *ServerPacket {
	return &ServerPacket{Type: SERVER_PLAYER_ANSWERED, ServerTimestamp: now(), Answered: &PlayerAnsweredPayload{PlayerId: playerId, QuestionId: questionId}}
}

func MakePacketQuestionResult(questionId string, correctOption int, deltas []ScoreDelta) *ServerPacket {
	return &ServerPacket{Type: SERVER_QUESTION_RESULT, ServerTimestamp: now(), Result: &QuestionResultPayload{
		QuestionId:    questionId,
		CorrectOption: correctOption,
		Deltas:        deltas,
	}}
}

func MakePacketGameOver(ranking []RankedScore) *ServerPacket {
	return &ServerPacket{Type: SERVER_GAME_OVER, ServerTimestamp: now(), GameOver: &GameOverPayload{Ranking: ranking}}
}

func MakePacketChatMessage(id int64, senderId, sender, text string) *ServerPacket {
	return &ServerPacket{Type: SERVER_CHAT_MESSAGE, ServerTimestamp: now(), Chat: &ChatMessagePayload{Id: id, SenderId: senderId, Sender: sender, Text: text}}
}

func MakePacketError(err error) *ServerPacket {
	return &ServerPacket{Type: SERVER_ERROR, ServerTimestamp: now(), Error: &ErrorPayload{Code: err.Error()}}
}

func marshalPacket(p *ServerPacket) []byte {
	data, err := json.Marshal(p)
	if err != nil {
		// all payloads are plain structs, this cannot fail at runtime
		panic(err)
	}
	return data
}
