package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"whatsapp-concierge/internal/domain"
	"whatsapp-concierge/pkg/logging"
)

// MenuAction is what a menu digit selects.
type MenuAction string

const (
	ActionMessage      MenuAction = "message"
	ActionSchedule     MenuAction = "schedule"
	ActionMemory       MenuAction = "memory"
	ActionQuiz         MenuAction = "quiz"
	ActionOliveMessage MenuAction = "oliveMessage"
	ActionExit         MenuAction = "exit"
)

// Profile is the conversational content of the bot: who is who, what gets said
// and which digit does what. It is reloaded from disk when the file changes.
type Profile struct {
	Contacts   ContactLists               `mapstructure:"contacts"`
	Menu       map[string]MenuAction      `mapstructure:"menu"`
	Categories map[string]CategoryProfile `mapstructure:"categories"`
	Prompts    Prompts                    `mapstructure:"prompts"`
}

type ContactLists struct {
	Family       []string `mapstructure:"family"`
	CloseFriends []string `mapstructure:"close_friends"`
	Colleagues   []string `mapstructure:"colleagues"`
}

type CategoryProfile struct {
	Template string   `mapstructure:"template"`
	Quiz     []string `mapstructure:"quiz"`
}

type Prompts struct {
	IntroductionAck    string `mapstructure:"introduction_ack"`
	Message            string `mapstructure:"message"`
	MessageAck         string `mapstructure:"message_ack"`
	Schedule           string `mapstructure:"schedule"`
	ScheduleAck        string `mapstructure:"schedule_ack"`
	Memory             string `mapstructure:"memory"`
	OliveMessage       string `mapstructure:"olive_message"`
	OliveConfirm       string `mapstructure:"olive_confirm"`
	OliveResponse      string `mapstructure:"olive_response"`
	OliveDeclined      string `mapstructure:"olive_declined"`
	Farewell           string `mapstructure:"farewell"`
	QuizSummary        string `mapstructure:"quiz_summary"`
	NoQuiz             string `mapstructure:"no_quiz"`
	TooShort           string `mapstructure:"too_short"`
	Inauthentic        string `mapstructure:"inauthentic"`
	ScoringUnavailable string `mapstructure:"scoring_unavailable"`
}

// Category returns the profile for c. Lookups are case-insensitive because
// viper lowercases map keys read from files.
func (p *Profile) Category(c domain.Category) CategoryProfile {
	if cp, ok := p.Categories[strings.ToLower(string(c))]; ok {
		return cp
	}
	return p.Categories[strings.ToLower(string(domain.CategoryStrangers))]
}

// MenuAction resolves a trimmed message body to a menu action.
func (p *Profile) MenuAction(body string) (MenuAction, bool) {
	body = strings.TrimSpace(body)
	if len(body) != 1 || body[0] < '0' || body[0] > '9' {
		return "", false
	}
	action, ok := p.Menu[body]
	return action, ok && action != ""
}

func (p *Profile) normalize() {
	categories := make(map[string]CategoryProfile, len(p.Categories))
	for k, v := range p.Categories {
		categories[strings.ToLower(k)] = v
	}
	p.Categories = categories
}

func DefaultProfile() *Profile {
	friendship := []string{
		"What's your favorite memory with Olive?",
		"What quality do you admire most about Olive?",
		"How has Olive impacted your life?",
		"What's something you've always wanted to tell Olive?",
		"If you could describe Olive in three words, what would they be?",
	}
	professional := []string{
		"What professional achievement are you most proud of?",
		"What's your vision for future collaboration?",
		"What innovative idea would you like to explore?",
		"What professional challenge are you currently facing?",
		"What's your approach to work-life balance?",
	}
	menu := "1️⃣ Leave a message\n2️⃣ Schedule a catch-up\n3️⃣ Share a memory\n4️⃣ Take the quiz\n5️⃣ Tell Olive something special\n6️⃣ Exit"

	p := &Profile{
		Menu: map[string]MenuAction{
			"1": ActionMessage,
			"2": ActionSchedule,
			"3": ActionMemory,
			"4": ActionQuiz,
			"5": ActionOliveMessage,
			"6": ActionExit,
		},
		Categories: map[string]CategoryProfile{
			string(domain.CategoryFamily): {
				Template: "Hi! 👋 Maximus here, Olive's AI assistant. Lovely to hear from family!\n\n" + menu + "\n\nChoose an option.",
				Quiz:     friendship,
			},
			string(domain.CategoryCloseFriends): {
				Template: "Hey! 👋 This is Olive's AI assistant Maximus.\n\nWhat's on your mind?\n" + menu + "\n\nChoose an option.",
				Quiz:     friendship,
			},
			string(domain.CategoryColleagues): {
				Template: "Hello! 👋 I am Maximus, Olive's AI Co-creator. How can I assist you today?\n\n" + menu + "\n\nPlease select an option to proceed.",
				Quiz:     professional,
			},
			string(domain.CategoryStrangers): {
				Template: "Hello! 👋 I am Maximus, Olive's AI Co-creator.\n\n" +
					"Before we proceed, please note:\n" +
					"- Messages must be genuine and at least 100 characters long\n" +
					"- Only serious messages that pass verification will be forwarded to Olive\n\n" +
					"Please introduce yourself in three lines:\nyour name\nyour email\nwhy you'd like to connect with Olive",
				Quiz: friendship,
			},
		},
		Prompts: Prompts{
			IntroductionAck:    "Thank you for introducing yourself! You can now leave your message.\n\n" + menu,
			Message:            "Please write your message. It should be at least 100 characters long and genuine.",
			MessageAck:         "Thank you for your message! Olive will get back to you soon.",
			Schedule:           "Please suggest a date and time for the catch-up.",
			ScheduleAck:        "Thanks! I've passed your suggested time on to Olive, who will confirm soon.",
			Memory:             "Please share your memory. Make it detailed and heartfelt.",
			OliveMessage:       "What would you like to tell Olive? Make it meaningful and from the heart.",
			OliveConfirm:       `Thank you for sharing this heartfelt message. Olive will cherish this. Would you like to hear what Olive would say to you? (Reply with "yes" or "no")`,
			OliveResponse:      "Olive says: thank you for thinking of me. Messages like yours are why I keep going. 💛",
			OliveDeclined:      "No problem! Your message has been saved for Olive.",
			Farewell:           "Thank you for chatting! Have a great day! 👋",
			QuizSummary:        "Thank you for completing the quiz! Here's a summary of your answers:",
			NoQuiz:             "There is no quiz available right now.",
			TooShort:           "Message too short. Please write at least 100 characters.",
			Inauthentic:        "Message seems insincere. Please write a more genuine message.",
			ScoringUnavailable: "I couldn't review your message right now. Please try sending it again in a moment.",
		},
	}
	p.normalize()
	return p
}

// ProfileSource serves the current profile and swaps it on file changes.
type ProfileSource struct {
	current atomic.Pointer[Profile]
	v       *viper.Viper
	logger  *logging.Logger
}

// StaticProfile wraps a fixed profile.
func StaticProfile(p *Profile) *ProfileSource {
	s := &ProfileSource{logger: logging.Discard()}
	s.current.Store(p)
	return s
}

// LoadProfile reads path over the defaults. An empty path yields the defaults.
func LoadProfile(path string, logger *logging.Logger) (*ProfileSource, error) {
	if logger == nil {
		logger = logging.Default()
	}
	s := &ProfileSource{logger: logger}
	if path == "" {
		s.current.Store(DefaultProfile())
		return s, nil
	}

	s.v = viper.New()
	s.v.SetConfigFile(path)
	p, err := s.read()
	if err != nil {
		return nil, err
	}
	s.current.Store(p)
	return s, nil
}

func (s *ProfileSource) read() (*Profile, error) {
	if err := s.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read profile: %w", err)
	}
	p := DefaultProfile()
	if err := s.v.Unmarshal(p); err != nil {
		return nil, fmt.Errorf("config: decode profile: %w", err)
	}
	p.normalize()
	s.fillCategories(p)
	return p, nil
}

// fillCategories restores default fields of built-in categories that the file
// names without setting them. Decoding replaces a category as a whole.
func (s *ProfileSource) fillCategories(p *Profile) {
	defaults := DefaultProfile().Categories
	for name, cp := range p.Categories {
		d, ok := defaults[name]
		if !ok {
			continue
		}
		if !s.v.IsSet("categories." + name + ".template") {
			cp.Template = d.Template
		}
		if !s.v.IsSet("categories." + name + ".quiz") {
			cp.Quiz = d.Quiz
		}
		p.Categories[name] = cp
	}
}

// Watch reloads the profile whenever the file changes. A broken edit keeps the previous profile.
func (s *ProfileSource) Watch() {
	if s.v == nil {
		return
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		p, err := s.read()
		if err != nil {
			s.logger.Warn("profile reload failed", "file", e.Name, "error", err)
			return
		}
		s.Replace(p)
		s.logger.Info("profile reloaded", "file", e.Name)
	})
	s.v.WatchConfig()
}

// Replace swaps the active profile.
func (s *ProfileSource) Replace(p *Profile) {
	p.normalize()
	s.current.Store(p)
}

// Current returns the active profile.
func (s *ProfileSource) Current() *Profile {
	return s.current.Load()
}
