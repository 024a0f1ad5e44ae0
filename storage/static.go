package storage

import (
	"context"
	"math/rand"

	"quizroom/game"
)

// StaticQuestionSource serves a fixed built-in question set. It backs
// local runs and tests where no database is configured.
type StaticQuestionSource struct {
	questions []game.Question
}

func NewStaticQuestionSource(questions []game.Question) *StaticQuestionSource {
	if len(questions) == 0 {
		questions = builtinQuestions
	}
	return &StaticQuestionSource{questions: questions}
}

func (s *StaticQuestionSource) GetRandomQuestions(_ context.Context, count int) ([]game.Question, error) {
	picked := make([]game.Question, len(s.questions))
	copy(picked, s.questions)
	rand.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	if count < len(picked) {
		picked = picked[:count]
	}
	return picked, nil
}

var builtinQuestions = []game.Question{
	{Id: "q-1", Prompt: "Which handshape signs the letter A?", Options: []string{"Closed fist, thumb to the side", "Flat open palm", "Index finger up", "Thumb and pinky out"}, CorrectOption: 0, TimeLimitSeconds: 15},
	{Id: "q-2", Prompt: "What does tapping the chin with a flat hand mean?", Options: []string{"Sorry", "Thank you", "Mother", "Please"}, CorrectOption: 1, TimeLimitSeconds: 15},
	{Id: "q-3", Prompt: "Which sign uses two index fingers circling each other?", Options: []string{"Friend", "Dance", "Sign", "Together"}, CorrectOption: 2, TimeLimitSeconds: 15},
	{Id: "q-4", Prompt: "How is the letter B signed?", Options: []string{"Closed fist", "Flat hand, fingers together, thumb across palm", "Two fingers crossed", "Pinky extended"}, CorrectOption: 1, TimeLimitSeconds: 15},
	{Id: "q-5", Prompt: "Which movement signs 'hello'?", Options: []string{"Wave from the forehead outward", "Tap the chest twice", "Circle the palm", "Cross both arms"}, CorrectOption: 0, TimeLimitSeconds: 15},
	{Id: "q-6", Prompt: "What does a closed fist nodding like a head mean?", Options: []string{"No", "Maybe", "Yes", "Stop"}, CorrectOption: 2, TimeLimitSeconds: 15},
	{Id: "q-7", Prompt: "Which sign touches the forehead then moves out to a 'Y' handshape?", Options: []string{"Remember", "Why", "Know", "Think"}, CorrectOption: 1, TimeLimitSeconds: 15},
	{Id: "q-8", Prompt: "How is 'please' signed?", Options: []string{"Flat hand circling the chest", "Two thumbs up", "Index finger to the lips", "Both palms up"}, CorrectOption: 0, TimeLimitSeconds: 15},
}
