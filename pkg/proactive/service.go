package proactive

import (
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/haivist/emma/pkg/bus"
	"github.com/haivist/emma/pkg/logger"
)

// CheckFunc runs one proactive evaluation against a session. It returns the
// message to deliver and true when one should be sent. Implementations must
// be idempotent within a due window.
type CheckFunc func(now time.Time) (string, bool)

// Service polls a session's proactive policy on a fixed interval and
// delivers resulting messages on the bus. An optional cron schedule gates
// delivery to quiet-hours-aware windows; an empty schedule means always.
type Service struct {
	interval time.Duration
	schedule string
	gron     *gronx.Gronx

	mu             sync.RWMutex
	check          CheckFunc
	bus            *bus.MessageBus
	deliverChannel string
	deliverChatID  string

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewService(interval time.Duration, schedule string) *Service {
	return &Service{
		interval: interval,
		schedule: schedule,
		gron:     gronx.New(),
		stopChan: make(chan struct{}),
	}
}

func (s *Service) SetCheck(fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.check = fn
}

func (s *Service) SetDelivery(msgBus *bus.MessageBus, channel, chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bus = msgBus
	s.deliverChannel = channel
	s.deliverChatID = chatID
}

func (s *Service) Start() {
	go s.runLoop()
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Service) runLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.poll(time.Now())
		}
	}
}

// poll runs one proactive check. Safe to call repeatedly within the same
// due window: the policy resolves follow-ups exactly once and every send
// resets the check-in clock.
func (s *Service) poll(now time.Time) {
	s.mu.RLock()
	check := s.check
	msgBus := s.bus
	channel := s.deliverChannel
	chatID := s.deliverChatID
	s.mu.RUnlock()

	if check == nil {
		return
	}

	if s.schedule != "" {
		due, err := s.gron.IsDue(s.schedule, now)
		if err != nil {
			logger.WarnCF("proactive", "Invalid cron schedule, ignoring gate",
				map[string]interface{}{"schedule": s.schedule, "error": err.Error()})
		} else if !due {
			return
		}
	}

	message, ok := check(now)
	if !ok {
		return
	}

	if msgBus != nil && channel != "" && chatID != "" {
		msgBus.PublishOutbound(bus.OutboundMessage{
			Channel:   channel,
			ChatID:    chatID,
			Content:   message,
			Proactive: true,
		})
		logger.InfoCF("proactive", "Proactive message delivered", map[string]interface{}{
			"channel": channel,
			"chat_id": chatID,
		})
	}
}
