package quiz

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNoActiveQuiz    = errors.New("no quiz in progress")
	ErrEmptyQuiz       = errors.New("quiz has no questions")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrFinished        = errors.New("quiz is finished")
	ErrInvalidOption   = errors.New("option out of range")
)

type (
	// View is what the student sees of the quiz in progress.
	View struct {
		QuizID   int      `json:"quizId"`
		Title    string   `json:"title"`
		Index    int      `json:"index"`
		Total    int      `json:"total"`
		Question string   `json:"question,omitempty"`
		Options  []string `json:"options,omitempty"`
		Selected *int     `json:"selected"`
		Correct  *int     `json:"correct"` // revealed once answered
		Score    int      `json:"score"`
		Finished bool     `json:"finished"`
		Result   *Result  `json:"result,omitempty"`
	}

	Result struct {
		Score   int `json:"score"`
		Total   int `json:"total"`
		Percent int `json:"percent"`
	}

	// Runner walks through one quiz at a time. After an answer the correct option is shown
	// for the feedback delay, then the next read moves on to the next question or the results.
	Runner struct {
		bank     *Bank
		delay    time.Duration
		now      func() time.Time
		onFinish func(Quiz, Result)

		mu         sync.Mutex
		quiz       *Quiz
		index      int
		score      int
		selected   int // -1 until answered
		answeredAt time.Time
		finished   bool
	}
)

func NewRunner(bank *Bank, feedbackDelay time.Duration, now func() time.Time) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{bank: bank, delay: feedbackDelay, now: now, selected: -1}
}

// OnFinish sets fn to be called once per run, when the results are first reached.
// fn must not call back into r.
func (r *Runner) OnFinish(fn func(Quiz, Result)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFinish = fn
}

// Start begins quiz id from its first question, dropping any quiz in progress.
func (r *Runner) Start(id int) (View, error) {
	q, err := r.bank.Quiz(id)
	if err != nil {
		return View{}, err
	}
	if len(q.Questions) == 0 {
		return View{}, ErrEmptyQuiz
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.quiz = &q
	r.index, r.score, r.selected, r.finished = 0, 0, -1, false
	r.answeredAt = time.Time{}
	return r.viewLocked(), nil
}

func (r *Runner) Current() (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.quiz == nil {
		return View{}, ErrNoActiveQuiz
	}
	r.advanceLocked()
	return r.viewLocked(), nil
}

// Answer selects option for the current question.
func (r *Runner) Answer(option int) (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.quiz == nil {
		return View{}, ErrNoActiveQuiz
	}
	r.advanceLocked()
	switch {
	case r.finished:
		return View{}, ErrFinished
	case r.selected >= 0:
		return View{}, ErrAlreadyAnswered
	}

	qn := r.quiz.Questions[r.index]
	if option < 0 || option >= len(qn.Options) {
		return View{}, ErrInvalidOption
	}
	r.selected = option
	r.answeredAt = r.now()
	if option == qn.Correct {
		r.score++
	}
	return r.viewLocked(), nil
}

// Reset drops the quiz in progress, if any.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quiz = nil
	r.index, r.score, r.selected, r.finished = 0, 0, -1, false
}

func (r *Runner) advanceLocked() {
	if r.finished || r.selected < 0 || r.now().Sub(r.answeredAt) < r.delay {
		return
	}
	if r.index < len(r.quiz.Questions)-1 {
		r.index++
		r.selected = -1
		return
	}
	r.finished = true
	if r.onFinish != nil {
		r.onFinish(*r.quiz, r.resultLocked())
	}
}

func (r *Runner) resultLocked() Result {
	total := len(r.quiz.Questions)
	return Result{
		Score:   r.score,
		Total:   total,
		Percent: int(math.Round(float64(r.score) / float64(total) * 100)),
	}
}

func (r *Runner) viewLocked() View {
	total := len(r.quiz.Questions)
	v := View{
		QuizID:   r.quiz.ID,
		Title:    r.quiz.Title,
		Index:    r.index,
		Total:    total,
		Score:    r.score,
		Finished: r.finished,
	}
	if r.finished {
		res := r.resultLocked()
		v.Result = &res
		return v
	}

	qn := r.quiz.Questions[r.index]
	v.Question = qn.Prompt
	v.Options = qn.Options
	if r.selected >= 0 {
		selected, correct := r.selected, qn.Correct
		v.Selected, v.Correct = &selected, &correct
	}
	return v
}
