package game

import (
	"math/rand"
	"strings"
	"sync"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6
const codeMaxAttempts = 32

// Codegen hands out room codes that are unique among live rooms.
// Codes are short and human-shareable, so collisions are possible and
// checked against the set of codes currently in use.
type Codegen struct {
	ids    map[string]struct{}
	locker sync.Mutex
}

func NewCodegen() *Codegen {
	return &Codegen{ids: make(map[string]struct{})}
}

func (g *Codegen) Generate() (string, error) {
	g.locker.Lock()
	defer g.locker.Unlock()

	for range codeMaxAttempts {
		code := randomCode()
		if _, taken := g.ids[code]; taken {
			continue
		}
		g.ids[code] = struct{}{}
		return code, nil
	}
	return "", ErrCodeExhausted
}

func (g *Codegen) Dispose(id string) {
	g.locker.Lock()
	defer g.locker.Unlock()
	delete(g.ids, id)
}

func randomCode() string {
	var sb strings.Builder
	sb.Grow(codeLength)
	for range codeLength {
		sb.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return sb.String()
}

// NormalizeCode maps user input onto the canonical upper-case form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
