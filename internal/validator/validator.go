// Package validator decides whether a free-text submission is worth forwarding.
package validator

import (
	"context"
	"errors"
	"unicode/utf8"

	"whatsapp-concierge/pkg/logging"
)

// ErrScoreUnparsable is returned by scorers when the model answer holds no number.
var ErrScoreUnparsable = errors.New("validator: score unparsable")

// Scorer rates how genuine a message reads, from 0 to 1.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// Reason explains a rejected submission.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonTooShort           Reason = "too_short"
	ReasonInauthentic        Reason = "inauthentic"
	ReasonScoringUnavailable Reason = "scoring_unavailable"
)

type Result struct {
	Valid  bool
	Score  *float64
	Reason Reason
}

type Config struct {
	MinLength int
	Threshold float64
	// FailOpen accepts messages when the scorer errors. The default rejects them.
	FailOpen bool
}

type Validator struct {
	scorer Scorer
	cfg    Config
	logger *logging.Logger
}

func New(scorer Scorer, cfg Config, logger *logging.Logger) *Validator {
	if scorer == nil {
		panic("validator: scorer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Validator{scorer: scorer, cfg: cfg, logger: logger}
}

// Validate checks length first, so short text never reaches the scorer.
func (v *Validator) Validate(ctx context.Context, text string) Result {
	if utf8.RuneCountInString(text) < v.cfg.MinLength {
		return Result{Reason: ReasonTooShort}
	}

	score, err := v.scorer.Score(ctx, text)
	if err != nil {
		v.logger.Warn("authenticity scoring failed", "error", err, "fail_open", v.cfg.FailOpen)
		if v.cfg.FailOpen {
			return Result{Valid: true}
		}
		return Result{Reason: ReasonScoringUnavailable}
	}

	if score < v.cfg.Threshold {
		return Result{Score: &score, Reason: ReasonInauthentic}
	}
	return Result{Valid: true, Score: &score}
}
