package game

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type GameHandler struct {
	lobby     Lobby
	store     *storeWriter
	questions QuestionSource
	listRooms func(ctx context.Context) []RoomDescription
}

func NewGameHandler(l *lobby, store *storeWriter, questions QuestionSource) *GameHandler {
	return &GameHandler{
		lobby:     l,
		store:     store,
		questions: questions,
		listRooms: l.ListJoinableRooms,
	}
}

func (h *GameHandler) RegisterRoutes(engine *gin.Engine) {
	group := engine.Group("/game")
	group.GET("/create", h.CreateRoomHandler)
	group.GET("/join/:code", h.JoinRoomHandler)
	group.GET("/random", h.JoinRandomHandler)
	group.GET("/rooms", h.ListRoomsHandler)
}

func (h *GameHandler) CreateRoomHandler(ctx *gin.Context) {
	capacity := clamp(intQuery(ctx, "capacity", DEFAULT_CAPACITY), MIN_CAPACITY, MAX_CAPACITY)
	questions := clamp(intQuery(ctx, "questions", DEFAULT_QUESTIONS), 1, MAX_QUESTIONS)

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("ws upgrade failed")
		return
	}

	host := h.newConnectedPlayer(ctx, conn)
	room := h.NewRoom(host, capacity, questions)

	addReq := NewAddRoomRequest(room)
	h.lobby.RequestAddAndRunRoom(ctx.Request.Context(), addReq)
	if err := <-addReq.errChan; err != nil {
		closeWithError(host, err)
		return
	}

	go host.ReadPump()
	go host.WritePump()
}

func (h *GameHandler) JoinRoomHandler(ctx *gin.Context) {
	code := NormalizeCode(ctx.Param("code"))

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("ws upgrade failed")
		return
	}

	player := h.newConnectedPlayer(ctx, conn)
	jreq := NewRoomJoinRequest(code, player)
	h.lobby.ForwardPlayerJoinRequestToRoom(ctx.Request.Context(), jreq)
	if err := <-jreq.errChan; err != nil {
		closeWithError(player, err)
		return
	}

	go player.ReadPump()
	go player.WritePump()
}

func (h *GameHandler) JoinRandomHandler(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("ws upgrade failed")
		return
	}

	player := h.newConnectedPlayer(ctx, conn)
	jreq := NewRandomJoinRequest(player)
	h.lobby.ForwardRandomJoinRequest(ctx.Request.Context(), jreq)
	if err := <-jreq.errChan; err != nil {
		closeWithError(player, err)
		return
	}

	go player.ReadPump()
	go player.WritePump()
}

func (h *GameHandler) ListRoomsHandler(ctx *gin.Context) {
	type joinableRoom struct {
		Code         string `json:"code"`
		PlayersCount int    `json:"playersCount"`
		Capacity     int    `json:"capacity"`
		Questions    int    `json:"questions"`
	}

	descs := h.listRooms(ctx.Request.Context())
	rooms := make([]joinableRoom, 0, len(descs))
	for _, d := range descs {
		rooms = append(rooms, joinableRoom{
			Code:         d.id,
			PlayersCount: d.playersCount,
			Capacity:     d.maxPlayers,
			Questions:    d.questions,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *GameHandler) NewRoom(host Player, capacity, questions int) Room {
	return NewRoom(host, capacity, questions, h.store, h.questions)
}

// DefaultRoomFactory is handed to the lobby so join-random can open a
// fresh room with stock settings when no seat is free.
func DefaultRoomFactory(store *storeWriter, questions QuestionSource) func(host Player) Room {
	return func(host Player) Room {
		return NewRoom(host, DEFAULT_CAPACITY, DEFAULT_QUESTIONS, store, questions)
	}
}

func (h *GameHandler) newConnectedPlayer(ctx *gin.Context, conn *websocket.Conn) *player {
	id := uuid.NewString()
	name := ctx.Query("name")
	if name == "" {
		name = "Player " + id[:4]
	}
	return NewPlayer(id, name, NewWebsocketConnection(conn))
}

func closeWithError(p *player, err error) {
	p.socket.Write(marshalPacket(MakePacketError(err)))
	p.CancelAndRelease()
}

func intQuery(ctx *gin.Context, key string, fallback int) int {
	val, err := strconv.Atoi(ctx.Query(key))
	if err != nil {
		return fallback
	}
	return val
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
