package game

import "time"

// sequencer owns the ordered question list, the current index, the
// per-question deadline and the submission lock. It is only ever touched
// from inside the owning room's loop.
type sequencer struct {
	questions []Question
	index     int
	deadline  time.Time
	answers   map[string]int
}

func newSequencer(questions []Question, now time.Time) *sequencer {
	s := &sequencer{
		questions: questions,
		index:     0,
		answers:   make(map[string]int),
	}
	if len(questions) > 0 {
		s.deadline = now.Add(questions[0].timeLimit())
	}
	return s
}

func (s *sequencer) current() *Question {
	if s.index >= len(s.questions) {
		return nil
	}
	return &s.questions[s.index]
}

func (s *sequencer) total() int {
	return len(s.questions)
}

func (s *sequencer) timeRemaining(now time.Time) time.Duration {
	remaining := s.deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *sequencer) expired(now time.Time) bool {
	return !now.Before(s.deadline)
}

// submit records a player's answer for the current question.
// A second submission by the same player is rejected, the first one wins.
func (s *sequencer) submit(playerId string, option int) error {
	if s.current() == nil {
		return ErrInvalidTransition
	}
	if _, locked := s.answers[playerId]; locked {
		return ErrAnswerAfterLock
	}
	s.answers[playerId] = option
	return nil
}

func (s *sequencer) answered(playerId string) bool {
	_, ok := s.answers[playerId]
	return ok
}

func (s *sequencer) answeredCount() int {
	return len(s.answers)
}

// advance moves to the next question, clearing the submission lock and
// arming the next deadline. It returns nil once the list is exhausted,
// which the room interprets as "finish".
func (s *sequencer) advance(now time.Time) *Question {
	s.index++
	s.answers = make(map[string]int)
	q := s.current()
	if q != nil {
		s.deadline = now.Add(q.timeLimit())
	}
	return q
}
