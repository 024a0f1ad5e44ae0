package game

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"quizroom/domain"
)

const (
	storeWriterBuffer  = 1024
	storeWriterRetries = 3
	storeWriterBackoff = time.Millisecond * 250
	storeWriterTimeout = time.Second * 5
)

type storeOp struct {
	desc string
	fn   func(ctx context.Context, s RoomStore) error
}

// storeWriter decouples gameplay from the durability layer: rooms
// enqueue writes and move on, a single worker applies them with retries.
// A full queue or an unreachable database costs a warning, never a
// blocked session.
type storeWriter struct {
	store RoomStore
	ops   chan storeOp
}

func NewStoreWriter(store RoomStore) *storeWriter {
	return &storeWriter{
		store: store,
		ops:   make(chan storeOp, storeWriterBuffer),
	}
}

func (w *storeWriter) Enqueue(desc string, fn func(ctx context.Context, s RoomStore) error) {
	select {
	case w.ops <- storeOp{desc: desc, fn: fn}:
	default:
		log.Warn().Str("op", desc).Err(domain.ErrPersistenceUnavailable).Msg("store queue full, write dropped")
	}
}

func (w *storeWriter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-w.ops:
			w.apply(ctx, op)
		}
	}
}

func (w *storeWriter) apply(ctx context.Context, op storeOp) {
	backoff := storeWriterBackoff
	var err error

	for attempt := 1; attempt <= storeWriterRetries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, storeWriterTimeout)
		err = op.fn(opCtx, w.store)
		cancel()
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		log.Warn().Str("op", op.desc).Int("attempt", attempt).Err(err).Msg("store write failed")
		time.Sleep(backoff)
		backoff *= 2
	}
	log.Error().Str("op", op.desc).Err(err).Msg("store write abandoned")
}
