package services

import (
	"edu-arena/internal/models"
)

type QuestionDatabase struct {
	quizzes []models.Quiz
}

func NewQuestionDatabase() *QuestionDatabase {
	return &QuestionDatabase{
		quizzes: []models.Quiz{
			{
				Question:     "What is the capital of France?",
				Options:      []string{"London", "Berlin", "Paris", "Madrid"},
				CorrectIndex: 2,
			},
			{
				Question:     "Which planet is known as the Red Planet?",
				Options:      []string{"Venus", "Mars", "Jupiter", "Saturn"},
				CorrectIndex: 1,
			},
			{
				Question:     "What is 7 x 8?",
				Options:      []string{"54", "56", "58", "64"},
				CorrectIndex: 1,
			},
			{
				Question:     "What is the largest ocean on Earth?",
				Options:      []string{"Atlantic", "Indian", "Pacific", "Arctic"},
				CorrectIndex: 2,
			},
			{
				Question:     "What is the chemical symbol for gold?",
				Options:      []string{"Go", "Gd", "Au", "Ag"},
				CorrectIndex: 2,
			},
			{
				Question:     "Which gas do plants absorb from the air?",
				Options:      []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"},
				CorrectIndex: 2,
			},
		},
	}
}

// Quizzes returns a copy of the bank, used to seed a new room.
func (qd *QuestionDatabase) Quizzes() []models.Quiz {
	out := make([]models.Quiz, len(qd.quizzes))
	for i, q := range qd.quizzes {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
		out[i] = q
	}
	return out
}

func (qd *QuestionDatabase) Add(q models.Quiz) error {
	if err := validateQuiz(q); err != nil {
		return err
	}
	qd.quizzes = append(qd.quizzes, q)
	return nil
}

func validateQuiz(q models.Quiz) error {
	if q.Question == "" || len(q.Options) != 4 || q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return ErrInvalidQuiz
	}
	return nil
}
