package proactive

import (
	"math/rand"
	"sync"
	"time"
)

// FollowUp is a scheduled reminder to ask about a previously mentioned
// topic. Items are never deleted, only marked handled, so the session keeps
// a history of what was communicated.
type FollowUp struct {
	Content   string    `json:"content"`
	Keyword   string    `json:"keyword"`
	CreatedAt time.Time `json:"created_at"`
	DueAt     time.Time `json:"due_at"`
	Needed    bool      `json:"follow_up_needed"`
}

// Policy decides when a proactive message is warranted and which follow-up
// (if any) it should surface. One Policy per session; all state is behind
// the mutex so a concurrent host is safe.
//
// The decision gate is a single unified threshold: elapsed time since the
// last interaction must exceed the general check-in interval. The follow-up
// delay only schedules DueAt, which selects WHICH message is sent, never
// WHETHER one is sent. Earlier split-threshold designs double-fired when a
// follow-up came due while a slow generation was in flight.
type Policy struct {
	mu              sync.Mutex
	queue           []*FollowUp
	lastInteraction time.Time

	followUpDelay   time.Duration
	checkinInterval time.Duration
}

func NewPolicy(followUpDelay, checkinInterval time.Duration) *Policy {
	return &Policy{
		followUpDelay:   followUpDelay,
		checkinInterval: checkinInterval,
		lastInteraction: time.Now(),
	}
}

// Record enqueues a follow-up for a message that matched a trigger keyword.
func (p *Policy) Record(content, keyword string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, &FollowUp{
		Content:   content,
		Keyword:   keyword,
		CreatedAt: now,
		DueAt:     now.Add(p.followUpDelay),
		Needed:    true,
	})
}

// Touch marks an interaction, resetting the check-in clock. Called on every
// inbound user message and after every proactive send.
func (p *Policy) Touch(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastInteraction = now
}

// ShouldNotify reports whether a proactive message is warranted. Pure with
// respect to the clock: repeated calls at the same instant agree.
func (p *Policy) ShouldNotify(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastInteraction) > p.checkinInterval
}

// NextDue returns the first due, still-needed follow-up and marks it
// handled. The transition happens exactly once per item; a second call in
// the same due window moves on to the next item or returns false.
func (p *Policy) NextDue(now time.Time) (FollowUp, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.queue {
		if f.Needed && !now.Before(f.DueAt) {
			f.Needed = false
			return *f, true
		}
	}
	return FollowUp{}, false
}

// Pending returns a snapshot of the queue, most recent first, up to limit.
func (p *Policy) Pending(limit int) []FollowUp {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]FollowUp, 0, len(p.queue))
	for i := len(p.queue) - 1; i >= 0; i-- {
		out = append(out, *p.queue[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// LastInteraction returns the time of the most recent interaction.
func (p *Policy) LastInteraction() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastInteraction
}

// Clear wipes the queue and resets the interaction clock.
func (p *Policy) Clear(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = nil
	p.lastInteraction = now
}

// followUpTemplates are the canned per-keyword follow-up messages, used
// when generation is unavailable or fails.
var followUpTemplates = map[string]string{
	"meeting":   "Hey! I've been thinking about your meeting. How did it go? 😊",
	"interview": "I hope your interview went amazingly! I'm excited to hear how it went! ✨",
	"exam":      "How are you feeling after your exam? I hope it went better than expected! 📚",
	"stressed":  "I've been thinking about you since you mentioned feeling stressed. How are you doing now? 💙",
	"worried":   "Just wanted to check in - you seemed worried earlier. How are things going? I'm here if you need to talk 🤗",
	"excited":   "I loved hearing your excitement earlier! How are things going with what you mentioned? 🎉",
	"job":       "How's work been treating you since we last talked? 💼",
	"friend":    "How's your friend doing? The one you mentioned earlier 👋",
	"family":    "Hope everything's going well with your family! 💕",
}

const defaultFollowUpTemplate = "Just thinking about our conversation earlier. How are you doing? 😊"

// checkinMessages are rotated for context-free general check-ins.
var checkinMessages = []string{
	"Hope you're having a wonderful day! What's on your mind? 😊",
	"Just wanted to check in and see how you're doing 💙",
	"Thinking about you! How has your day been treating you? ✨",
	"Hey there! I was wondering how you're feeling today 🤗",
}

// TemplateFor returns the canned follow-up message for a keyword.
func TemplateFor(keyword string) string {
	if msg, ok := followUpTemplates[keyword]; ok {
		return msg
	}
	return defaultFollowUpTemplate
}

// GenericCheckin returns a random canned check-in message.
func GenericCheckin() string {
	return checkinMessages[rand.Intn(len(checkinMessages))]
}
