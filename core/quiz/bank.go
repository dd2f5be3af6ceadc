// Package quiz holds the quiz bank and the runner walking a student through one quiz.
package quiz

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/lms/core"
)

//go:embed bank.yaml
var defaultBank []byte

var ErrQuizNotFound = errors.New("quiz not found")

// Duration reads "15m" style durations from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

type (
	Question struct {
		Prompt  string   `yaml:"question" json:"question" validate:"notblank"`
		Options []string `yaml:"options" json:"options" validate:"min=2,dive,notblank"`
		Correct int      `yaml:"correct" json:"-"`
	}

	Quiz struct {
		ID         int        `yaml:"id" json:"id" validate:"gt=0"`
		Title      string     `yaml:"title" json:"title" validate:"notblank"`
		Difficulty string     `yaml:"difficulty" json:"difficulty" validate:"oneof=Beginner Intermediate Advanced"`
		Duration   Duration   `yaml:"duration" json:"duration" validate:"gt=0"`
		Questions  []Question `yaml:"questions" json:"questions" validate:"min=1,dive"`
	}

	Bank struct {
		Quizzes []Quiz `yaml:"quizzes" validate:"min=1,dive"`
	}

	// Summary is the quiz list entry, without the questions.
	Summary struct {
		ID            int      `json:"id"`
		Title         string   `json:"title"`
		Difficulty    string   `json:"difficulty"`
		Duration      Duration `json:"duration"`
		QuestionCount int      `json:"questionCount"`
	}
)

// LoadBank reads the bank at path, or the built-in bank if path is empty.
func LoadBank(path string, validate *validator.Validate) (*Bank, error) {
	if path == "" {
		return ParseBank(bytes.NewReader(defaultBank), validate)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening quiz bank")
	}
	defer f.Close()
	return ParseBank(f, validate)
}

func ParseBank(r io.Reader, validate *validator.Validate) (*Bank, error) {
	bank := new(Bank)
	if err := yaml.NewDecoder(r).Decode(bank); err != nil {
		return nil, errors.Wrap(err, "decoding quiz bank")
	}
	if err := validate.Struct(bank); err != nil {
		return nil, errors.Wrap(err, "invalid quiz bank")
	}
	if err := bank.check(); err != nil {
		return nil, err
	}
	return bank, nil
}

// check enforces the rules the struct tags cannot: unique ids and answers within the options.
func (b *Bank) check() error {
	var fields []core.FieldError
	seen := make(map[int]bool, len(b.Quizzes))
	for i, q := range b.Quizzes {
		if seen[q.ID] {
			fields = append(fields, core.FieldError{
				Field: fmt.Sprintf("quizzes[%d].id", i),
				Error: fmt.Sprintf("duplicate quiz id %d", q.ID),
			})
		}
		seen[q.ID] = true

		for j, qn := range q.Questions {
			if qn.Correct < 0 || qn.Correct >= len(qn.Options) {
				fields = append(fields, core.FieldError{
					Field: fmt.Sprintf("quizzes[%d].questions[%d].correct", i, j),
					Error: fmt.Sprintf("must be between 0 and %d", len(qn.Options)-1),
				})
			}
		}
	}
	if len(fields) > 0 {
		return core.NewValidationError(nil, fields...)
	}
	return nil
}

func (b *Bank) Quiz(id int) (Quiz, error) {
	for _, q := range b.Quizzes {
		if q.ID == id {
			return q, nil
		}
	}
	return Quiz{}, ErrQuizNotFound
}

func (b *Bank) Summaries() []Summary {
	out := make([]Summary, len(b.Quizzes))
	for i, q := range b.Quizzes {
		out[i] = Summary{
			ID:            q.ID,
			Title:         q.Title,
			Difficulty:    q.Difficulty,
			Duration:      q.Duration,
			QuestionCount: len(q.Questions),
		}
	}
	return out
}
