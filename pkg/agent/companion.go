package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/haivist/emma/pkg/config"
	"github.com/haivist/emma/pkg/extract"
	"github.com/haivist/emma/pkg/graph"
	"github.com/haivist/emma/pkg/logger"
	"github.com/haivist/emma/pkg/proactive"
	"github.com/haivist/emma/pkg/providers"
	"github.com/haivist/emma/pkg/session"
)

// fallbackResponse is sent when the provider is unreachable or returns nothing.
const fallbackResponse = "I'm having trouble connecting right now, but I want you to know I'm here for you 💙 Could you tell me more about what's on your mind?"

// Companion is one agent-per-session conversation state: the knowledge graph,
// extraction pipeline, proactive policy and turn history for a single user.
type Companion struct {
	Name       string
	SessionKey string

	cfg       *config.Config
	provider  providers.LLMProvider
	graph     *graph.Graph
	extractor *extract.Extractor
	policy    *proactive.Policy
	sessions  *session.Manager
	archive   *graph.Archive

	// genMu guards the generation sequence. A new inbound message cancels any
	// in-flight generation; replies from a superseded generation are dropped
	// instead of being appended out of order.
	genMu     sync.Mutex
	genSeq    uint64
	genCancel context.CancelFunc
}

// NewCompanion builds a companion for one session key. The archive may be nil
// when durable logging is disabled.
func NewCompanion(cfg *config.Config, provider providers.LLMProvider, sessions *session.Manager, archive *graph.Archive, sessionKey string) *Companion {
	g := graph.New()
	g.SetArchive(archive)

	return &Companion{
		Name:       cfg.Agent.Name,
		SessionKey: sessionKey,
		cfg:        cfg,
		provider:   provider,
		graph:      g,
		extractor:  extract.NewExtractor(cfg.TriggerKeywords()),
		policy: proactive.NewPolicy(
			time.Duration(cfg.Proactive.FollowUpDelaySecs)*time.Second,
			time.Duration(cfg.Proactive.CheckinIntervalSecs)*time.Second,
		),
		sessions: sessions,
		archive:  archive,
	}
}

// Graph exposes the underlying knowledge graph for inspection surfaces.
func (c *Companion) Graph() *graph.Graph {
	return c.graph
}

// Policy exposes the proactive policy, mainly for tests and status surfaces.
func (c *Companion) Policy() *proactive.Policy {
	return c.policy
}

// beginGeneration cancels any in-flight generation and registers a new one.
// The returned sequence number identifies this generation; commitReply uses
// it to decide whether the finished reply is still the latest.
func (c *Companion) beginGeneration(parent context.Context) (context.Context, uint64) {
	c.genMu.Lock()
	defer c.genMu.Unlock()

	if c.genCancel != nil {
		c.genCancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.genSeq++
	c.genCancel = cancel
	return ctx, c.genSeq
}

// commitReply appends the agent turn only if the given generation is still
// the latest. The currency check and the append share one critical section
// with beginGeneration, so a newer user message can never slot in between
// the check and a stale reply landing in the session.
func (c *Companion) commitReply(seq uint64, userMsg, reply string) bool {
	c.genMu.Lock()
	defer c.genMu.Unlock()

	if seq != c.genSeq {
		return false
	}
	c.sessions.AddTurn(c.SessionKey, session.SenderAgent, reply)
	c.recordTurns(userMsg, reply)
	return true
}

// observe runs the memory side effects of an inbound message: interaction
// timestamp, keyword extraction, graph write, follow-up scheduling.
func (c *Companion) observe(message string) {
	now := time.Now()
	c.policy.Touch(now)

	input, triggered := c.extractor.Extract(message)
	if !triggered {
		return
	}

	memoryID := c.graph.AddMemoryFromMessage(message, input)
	c.policy.Record(message, input.Keyword, now)

	logger.InfoCF("agent", "Memory extracted", map[string]interface{}{
		"memory_id":   memoryID,
		"keyword":     input.Keyword,
		"session_key": c.SessionKey,
	})
}

// buildMessages assembles the provider message list: persona system prompt
// with retrieved graph context, the recent turn window, then the new message.
func (c *Companion) buildMessages(message string) []providers.Message {
	memoryContext := c.graph.ContextForQuery(message, c.cfg.Memory.ContextTopK)
	system := buildSystemPrompt(c.Name, memoryContext)

	messages := []providers.Message{{Role: "system", Content: system}}
	for _, e := range renderHistory(c.sessions.Recent(c.SessionKey, c.cfg.Agent.ContextWindow)) {
		messages = append(messages, providers.Message{Role: e.Role, Content: e.Content})
	}
	messages = append(messages, providers.Message{Role: "user", Content: message})
	return messages
}

func (c *Companion) chatOptions() map[string]interface{} {
	return map[string]interface{}{
		"max_tokens":  c.cfg.Agent.MaxTokens,
		"temperature": c.cfg.Agent.Temperature,
	}
}

// HandleMessage processes one user message end to end and returns the reply.
// The provider being down never produces an error: the companion falls back
// to a canned supportive response instead.
func (c *Companion) HandleMessage(ctx context.Context, message string) (string, error) {
	genCtx, seq := c.beginGeneration(ctx)

	c.observe(message)
	c.sessions.AddTurn(c.SessionKey, session.SenderUser, message)

	messages := c.buildMessages(message)

	response, err := c.provider.Chat(genCtx, messages, c.cfg.Agent.Model, c.chatOptions())
	reply := ""
	if err != nil {
		logger.WarnCF("agent", "LLM call failed, using fallback", map[string]interface{}{
			"error":       err.Error(),
			"session_key": c.SessionKey,
		})
		reply = fallbackResponse
	} else {
		reply = strings.TrimSpace(response.Content)
		if reply == "" {
			reply = fallbackResponse
		}
	}

	if !c.commitReply(seq, message, reply) {
		logger.DebugCF("agent", "Dropping superseded reply", map[string]interface{}{
			"session_key": c.SessionKey,
		})
		return "", context.Canceled
	}
	return reply, nil
}

// HandleMessageStream processes one user message and streams reply fragments.
// If the stream dies after text was already emitted, the reply is kept
// truncated at the last fragment; if it dies before any text, the fallback
// response is emitted instead.
func (c *Companion) HandleMessageStream(ctx context.Context, message string) (<-chan string, error) {
	genCtx, seq := c.beginGeneration(ctx)

	c.observe(message)
	c.sessions.AddTurn(c.SessionKey, session.SenderUser, message)

	messages := c.buildMessages(message)

	fragments, err := c.provider.ChatStream(genCtx, messages, c.cfg.Agent.Model, c.chatOptions())
	out := make(chan string, 16)

	if err != nil {
		logger.WarnCF("agent", "LLM stream failed to start, using fallback", map[string]interface{}{
			"error":       err.Error(),
			"session_key": c.SessionKey,
		})
		go func() {
			defer close(out)
			out <- fallbackResponse
			c.commitReply(seq, message, fallbackResponse)
		}()
		return out, nil
	}

	go func() {
		defer close(out)
		var full strings.Builder

		for frag := range fragments {
			if frag.Err != nil {
				logger.WarnCF("agent", "LLM stream interrupted", map[string]interface{}{
					"error":       frag.Err.Error(),
					"session_key": c.SessionKey,
				})
				break
			}
			if frag.Text == "" {
				continue
			}
			full.WriteString(frag.Text)
			out <- frag.Text
		}

		reply := strings.TrimSpace(full.String())
		if reply == "" {
			reply = fallbackResponse
			out <- fallbackResponse
		}

		c.commitReply(seq, message, reply)
	}()

	return out, nil
}

// recordTurns appends the exchange to the durable archive when enabled.
func (c *Companion) recordTurns(userMsg, agentMsg string) {
	if c.archive == nil {
		return
	}
	if err := c.archive.RecordTurn(c.SessionKey, session.SenderUser, userMsg); err != nil {
		logger.DebugCF("agent", "Archive write failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := c.archive.RecordTurn(c.SessionKey, session.SenderAgent, agentMsg); err != nil {
		logger.DebugCF("agent", "Archive write failed", map[string]interface{}{"error": err.Error()})
	}
}

// CheckProactive decides whether the companion should reach out unprompted at
// the given instant. It returns the outbound message and true when due.
// Pending follow-ups take priority over generic check-ins; a successful check
// resets the interaction clock so the companion does not nag.
func (c *Companion) CheckProactive(now time.Time) (string, bool) {
	if !c.cfg.Proactive.Enabled {
		return "", false
	}
	if !c.policy.ShouldNotify(now) {
		return "", false
	}

	var template string
	if due, ok := c.policy.NextDue(now); ok {
		template = proactive.TemplateFor(due.Keyword)
	} else {
		template = proactive.GenericCheckin()
	}

	message := c.generateProactive(template)

	c.policy.Touch(now)
	c.sessions.AddProactiveTurn(c.SessionKey, message)

	logger.InfoCF("agent", "Proactive message prepared", map[string]interface{}{
		"session_key": c.SessionKey,
	})
	return message, true
}

// generateProactive asks the model to phrase the template in persona voice,
// falling back to the raw template when the provider is unavailable.
func (c *Companion) generateProactive(template string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recent := c.sessions.Recent(c.SessionKey, c.cfg.Agent.ContextWindow)
	response, err := c.provider.Chat(ctx, []providers.Message{
		{Role: "user", Content: proactivePrompt(c.Name, template, recent)},
	}, c.cfg.Agent.Model, c.chatOptions())
	if err != nil || strings.TrimSpace(response.Content) == "" {
		return template
	}
	return strings.TrimSpace(response.Content)
}

// GraphStats returns aggregate counts for the companion's knowledge graph.
func (c *Companion) GraphStats() graph.Stats {
	return c.graph.Stats()
}

// RecentMemories returns the n most recent stored memories, newest first.
// n <= 0 falls back to the configured recent limit.
func (c *Companion) RecentMemories(n int) []graph.MemoryRef {
	if n <= 0 {
		n = c.cfg.Memory.RecentLimit
	}
	return c.graph.RecentMemories(n)
}

// RelatedMemories returns memories reachable from an entity within the
// configured hop bound, farther-but-newer first.
func (c *Companion) RelatedMemories(entityID string) []graph.MemoryRef {
	return c.graph.RelatedMemories(entityID, c.cfg.Memory.MaxHops)
}

// UserRelationships returns the people the user has mentioned, sorted by name.
func (c *Companion) UserRelationships() []graph.UserRelation {
	return c.graph.UserRelationships()
}

// ClearSession wipes conversation history, the knowledge graph and any pending
// follow-ups, returning the companion to a fresh state.
func (c *Companion) ClearSession() {
	c.sessions.Clear(c.SessionKey)
	c.graph.Clear()
	c.policy.Clear(time.Now())
	logger.InfoC("agent", fmt.Sprintf("Session %s cleared", c.SessionKey))
}

// ExportGraph writes the knowledge graph to path as node-link JSON.
func (c *Companion) ExportGraph(path string) error {
	return c.graph.Export(path)
}

// ImportGraph replaces the knowledge graph from a node-link JSON snapshot.
// The existing graph is untouched when the snapshot is malformed.
func (c *Companion) ImportGraph(path string) error {
	return c.graph.Import(path)
}
