// Package notifier fans task lifecycle notifications out to in-process
// subscribers (via the event bus) and, optionally, a Telegram chat.
// Publish is fire-and-forget: delivery failures are logged and never reach
// the caller.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"taskmill/internal/eventbus"
	logx "taskmill/pkg/logx"
)

type Config struct {
	Telegram TelegramConfig
}

type TelegramConfig struct {
	Enabled    bool
	Token      string
	ChatID     int64
	RatePerSec int
}

type Service struct {
	log logx.Logger
	bus eventbus.Bus

	mu      sync.Mutex
	bot     *tele.Bot
	chatID  int64
	limiter *rate.Limiter

	queue  chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, bus: bus}

	if cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return nil, errors.New("notifier: telegram enabled but token is empty")
		}
		bot, err := tele.NewBot(tele.Settings{Token: cfg.Telegram.Token})
		if err != nil {
			return nil, err
		}
		rps := cfg.Telegram.RatePerSec
		if rps <= 0 {
			rps = 1
		}
		s.bot = bot
		s.chatID = cfg.Telegram.ChatID
		s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		s.queue = make(chan string, 64)

		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.telegramWorker(ctx)
		}()
	}
	return s, nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
	return nil
}

// Publish emits the event on the bus and queues Telegram delivery when
// configured. It never blocks and never returns an error.
func (s *Service) Publish(eventType string, c Content) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventType, Time: time.Now(), Data: c})
	}

	s.mu.Lock()
	bot := s.bot
	lim := s.limiter
	s.mu.Unlock()
	if bot == nil || s.chatID == 0 {
		return
	}
	if lim != nil && !lim.Allow() {
		return
	}

	msg := formatTelegram(eventType, c)
	select {
	case s.queue <- msg:
	default:
		// Never block task execution on notification delivery.
		s.log.Debug("notification dropped: telegram queue full", logx.String("event", eventType))
	}
}

func (s *Service) telegramWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.queue:
			s.mu.Lock()
			bot := s.bot
			chatID := s.chatID
			s.mu.Unlock()
			if bot == nil {
				continue
			}
			if _, err := bot.Send(&tele.Chat{ID: chatID}, msg); err != nil {
				s.log.Warn("telegram notification failed", logx.Err(err))
			}
		}
	}
}

func formatTelegram(eventType string, c Content) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.ToUpper(c.Type))
	b.WriteString("] ")
	b.WriteString(c.Title)
	b.WriteString(" (")
	b.WriteString(eventType)
	b.WriteString(")\n")
	b.WriteString(c.Message)
	if meta, err := json.Marshal(c.Metadata); err == nil {
		b.WriteString("\n")
		b.Write(meta)
	}
	return b.String()
}
