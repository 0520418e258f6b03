// Package conversation holds the per-chat dialogue: introductions, the menu,
// quizzes and free-text prompts.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatsapp-concierge/internal/config"
	"whatsapp-concierge/internal/dispatch"
	"whatsapp-concierge/internal/domain"
	"whatsapp-concierge/internal/metrics"
	"whatsapp-concierge/internal/store"
	"whatsapp-concierge/internal/validator"
	"whatsapp-concierge/pkg/logging"
)

// Step names the branch that handled a turn.
type Step string

const (
	StepStrangerIntro Step = "stranger_intro"
	StepIntroduction  Step = "introduction"
	StepMenu          Step = "menu"
	StepQuiz          Step = "quiz"
	StepFreeText      Step = "free_text"
	StepSchedule      Step = "schedule"
	StepOliveConfirm  Step = "olive_confirm"
	StepDefault       Step = "default"
)

type Validator interface {
	Validate(ctx context.Context, text string) validator.Result
}

// Outcome is the reply for one turn and the branch that produced it.
type Outcome struct {
	Reply dispatch.OutboundReply
	Step  Step
	// Waiting is the prompt the chat awaits after the turn.
	Waiting domain.PromptKind
}

type Machine struct {
	states    store.StateStore
	validator Validator
	profiles  *config.ProfileSource
	metrics   *metrics.Metrics
	logger    *logging.Logger
	now       func() time.Time
}

func NewMachine(states store.StateStore, v Validator, profiles *config.ProfileSource, m *metrics.Metrics, logger *logging.Logger) *Machine {
	if states == nil || v == nil || profiles == nil {
		panic("conversation: states, validator and profiles are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{states: states, validator: v, profiles: profiles, metrics: m, logger: logger, now: time.Now}
}

// turn carries what a single Handle call works on.
type turn struct {
	chatID   string
	category domain.Category
	body     string
	profile  *config.Profile
	state    *domain.ChatState
}

// Handle advances the chat's dialogue by one inbound message. Callers must
// serialize calls for the same chat.
func (m *Machine) Handle(ctx context.Context, chatID string, category domain.Category, body string) (Outcome, error) {
	t := &turn{
		chatID:   chatID,
		category: category,
		body:     strings.TrimSpace(body),
		profile:  m.profiles.Current(),
	}

	state, err := m.states.GetState(ctx, chatID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		t.state = &domain.ChatState{}
	case err != nil:
		return Outcome{}, fmt.Errorf("conversation: load state: %w", err)
	default:
		t.state = state
	}

	if category == domain.CategoryStrangers && !t.state.Introduced {
		if !t.state.IntroPrompted {
			t.state.IntroPrompted = true
			t.state.Await(domain.PromptIntroduction)
			return m.save(ctx, t, StepStrangerIntro, t.profile.Category(category).Template)
		}
		// Only parse while the introduction is the open prompt; a stranger who
		// went to the menu instead is answering that prompt.
		if t.state.WaitingFor == domain.PromptIntroduction {
			if intro, ok := parseIntroduction(t.body); ok {
				t.state.Introduced = true
				t.state.Intro = intro
				t.state.Clear()
				return m.save(ctx, t, StepIntroduction, t.profile.Prompts.IntroductionAck)
			}
		}
	}

	if action, ok := t.profile.MenuAction(t.body); ok {
		return m.menu(ctx, t, action)
	}

	switch t.state.WaitingFor {
	case domain.PromptQuizAnswer:
		return m.quizAnswer(ctx, t)
	case domain.PromptMessage, domain.PromptMemory, domain.PromptOliveMessage:
		return m.freeText(ctx, t)
	case domain.PromptSchedule:
		if t.body != "" {
			return m.reset(ctx, t, StepSchedule, t.profile.Prompts.ScheduleAck)
		}
	case domain.PromptOliveResponseConfirm:
		return m.oliveConfirm(ctx, t)
	}

	return m.reply(t, StepDefault, t.profile.Category(category).Template), nil
}

func (m *Machine) menu(ctx context.Context, t *turn, action config.MenuAction) (Outcome, error) {
	p := t.profile.Prompts
	switch action {
	case config.ActionMessage:
		t.state.Await(domain.PromptMessage)
		return m.save(ctx, t, StepMenu, p.Message)
	case config.ActionSchedule:
		t.state.Await(domain.PromptSchedule)
		return m.save(ctx, t, StepMenu, p.Schedule)
	case config.ActionMemory:
		t.state.Await(domain.PromptMemory)
		return m.save(ctx, t, StepMenu, p.Memory)
	case config.ActionOliveMessage:
		t.state.Await(domain.PromptOliveMessage)
		return m.save(ctx, t, StepMenu, p.OliveMessage)
	case config.ActionQuiz:
		questions := t.profile.Category(t.category).Quiz
		if len(questions) == 0 {
			return m.reply(t, StepMenu, p.NoQuiz), nil
		}
		t.state.Await(domain.PromptQuizAnswer)
		t.state.Quiz = &domain.QuizProgress{}
		return m.save(ctx, t, StepMenu, questions[0])
	case config.ActionExit:
		return m.reset(ctx, t, StepMenu, p.Farewell)
	}
	m.logger.Warn("unknown menu action", "chat", t.chatID, "action", action)
	return m.reply(t, StepDefault, t.profile.Category(t.category).Template), nil
}

func (m *Machine) quizAnswer(ctx context.Context, t *turn) (Outcome, error) {
	questions := t.profile.Category(t.category).Quiz
	quiz := t.state.Quiz
	if quiz == nil {
		quiz = &domain.QuizProgress{}
		t.state.Quiz = quiz
	}
	quiz.Answers = append(quiz.Answers, t.body)
	quiz.Index++

	if quiz.Index < len(questions) {
		return m.save(ctx, t, StepQuiz, questions[quiz.Index])
	}
	summary := t.profile.Prompts.QuizSummary + "\n\n" + strings.Join(quiz.Answers, "\n\n")
	return m.reset(ctx, t, StepQuiz, summary)
}

func (m *Machine) freeText(ctx context.Context, t *turn) (Outcome, error) {
	res := m.validator.Validate(ctx, t.body)
	m.metrics.ObserveValidation(res.Valid, string(res.Reason))
	if !res.Valid {
		m.logger.Info("free-text submission rejected", "chat", t.chatID, "reason", res.Reason, "waiting_for", t.state.WaitingFor)
		return m.reply(t, StepFreeText, m.rejection(t.profile, res.Reason)), nil
	}

	if t.state.WaitingFor == domain.PromptOliveMessage {
		t.state.Await(domain.PromptOliveResponseConfirm)
		t.state.PendingMessage = t.body
		return m.save(ctx, t, StepFreeText, t.profile.Prompts.OliveConfirm)
	}
	return m.reset(ctx, t, StepFreeText, t.profile.Prompts.MessageAck)
}

func (m *Machine) oliveConfirm(ctx context.Context, t *turn) (Outcome, error) {
	p := t.profile.Prompts
	switch strings.ToLower(t.body) {
	case "yes", "y":
		return m.reset(ctx, t, StepOliveConfirm, p.OliveResponse)
	case "no", "n":
		return m.reset(ctx, t, StepOliveConfirm, p.OliveDeclined)
	}
	return m.reply(t, StepOliveConfirm, p.OliveConfirm), nil
}

func (m *Machine) rejection(p *config.Profile, reason validator.Reason) string {
	switch reason {
	case validator.ReasonTooShort:
		return p.Prompts.TooShort
	case validator.ReasonScoringUnavailable:
		return p.Prompts.ScoringUnavailable
	}
	return p.Prompts.Inauthentic
}

func (m *Machine) save(ctx context.Context, t *turn, step Step, text string) (Outcome, error) {
	t.state.UpdatedAt = m.now()
	if err := m.states.SaveState(ctx, t.chatID, t.state); err != nil {
		return Outcome{}, fmt.Errorf("conversation: save state: %w", err)
	}
	return m.reply(t, step, text), nil
}

// reset ends the dialogue; the next message starts from the default menu.
func (m *Machine) reset(ctx context.Context, t *turn, step Step, text string) (Outcome, error) {
	if err := m.states.DeleteState(ctx, t.chatID); err != nil {
		return Outcome{}, fmt.Errorf("conversation: delete state: %w", err)
	}
	t.state = &domain.ChatState{}
	return m.reply(t, step, text), nil
}

func (m *Machine) reply(t *turn, step Step, text string) Outcome {
	return Outcome{
		Reply:   dispatch.TextReply{Text: text},
		Step:    step,
		Waiting: t.state.WaitingFor,
	}
}

// parseIntroduction reads "name\nemail\nreason". Extra lines are ignored.
func parseIntroduction(body string) (*domain.Introduction, bool) {
	lines := strings.Split(body, "\n")
	if len(lines) < 3 {
		return nil, false
	}
	intro := &domain.Introduction{
		Name:   strings.TrimSpace(lines[0]),
		Email:  strings.TrimSpace(lines[1]),
		Reason: strings.TrimSpace(lines[2]),
	}
	if intro.Name == "" || intro.Email == "" || intro.Reason == "" {
		return nil, false
	}
	return intro, true
}
