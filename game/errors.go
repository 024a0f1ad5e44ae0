package game

import "errors"

var (
	ErrRoomNotFound        = errors.New("room-not-found")
	ErrRoomFull            = errors.New("room-full")
	ErrRoomClosed          = errors.New("room-closed")
	ErrCodeExhausted       = errors.New("code-exhausted")
	ErrNotHost             = errors.New("not-host")
	ErrInsufficientPlayers = errors.New("insufficient-players")
	ErrAnswerAfterLock     = errors.New("answer-after-lock")
	ErrQuestionExpired     = errors.New("question-expired")
	ErrInvalidTransition   = errors.New("invalid-transition")
	ErrNotInRoom           = errors.New("not-in-room")
)

var ErrSendBufferFull = errors.New("send-buffer-full")
