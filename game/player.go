package game

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/time/rate"
)

type player struct {
	id       string
	username string

	rateLimiter *rate.Limiter
	socket      WebsocketConnection
	inbox       chan []byte
	pingChan    chan struct{}

	room Room

	ctx       context.Context
	cancelCtx context.CancelFunc
	closeOnce sync.Once
}

func NewPlayer(id, username string, socket WebsocketConnection) *player {
	ctx, cancel := context.WithCancel(context.Background())
	return &player{
		id:          id,
		username:    username,
		rateLimiter: rate.NewLimiter(5, 10),
		socket:      socket,
		inbox:       make(chan []byte, 256),
		pingChan:    make(chan struct{}, 1),
		ctx:         ctx,
		cancelCtx:   cancel,
	}
}

func (p *player) ID() string {
	return p.id
}

func (p *player) Username() string {
	return p.username
}

func (p *player) SetRoom(r Room) {
	p.room = r
}

func (p *player) Send(data []byte) error {
	select {
	case p.inbox <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (p *player) Ping() error {
	select {
	case p.pingChan <- struct{}{}:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (p *player) CancelAndRelease() {
	p.closeOnce.Do(func() {
		p.cancelCtx()
		p.socket.Close()
	})
}

// ReadPump parses inbound packets and forwards them onto the room's
// event queue. It exits on the first read error, reporting the
// disconnect to the room.
func (p *player) ReadPump() {
	defer p.socket.Close()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		data, err := p.socket.Read()
		if err != nil {
			if p.room != nil && p.ctx.Err() == nil {
				p.room.RemoveMe(p.ctx, p)
			}
			return
		}

		if !p.rateLimiter.Allow() {
			continue
		}

		packet := &ClientPacket{}
		if err := json.Unmarshal(data, packet); err != nil || packet.Type == "" {
			continue
		}

		p.room.Send(p.ctx, ClientPacketEnvelope{clientPacket: packet, from: p})
	}
}

func (p *player) WritePump() {
	defer p.socket.Close()

	for {
		select {
		case <-p.ctx.Done():
			return
		case data := <-p.inbox:
			if err := p.socket.Write(data); err != nil {
				if p.room != nil && p.ctx.Err() == nil {
					p.room.RemoveMe(p.ctx, p)
				}
				return
			}
		case <-p.pingChan:
			if err := p.socket.Ping(); err != nil {
				if p.room != nil && p.ctx.Err() == nil {
					p.room.RemoveMe(p.ctx, p)
				}
				return
			}
		}
	}
}
