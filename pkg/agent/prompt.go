package agent

import (
	"fmt"
	"strings"

	"github.com/haivist/emma/pkg/session"
)

// systemPromptTemplate is the persona instruction sent on every generation.
// %s slots: agent name, memory context block.
const systemPromptTemplate = `You are %s, a warm and emotionally attentive companion.
You remember what the user shares with you and bring it up naturally when it matters.
You respond with empathy first, advice only when asked. Keep replies short and
conversational, like a close friend texting back.

%s

Use the memories above only when they are genuinely relevant. Never recite them
mechanically or mention that you have a memory system.`

// buildSystemPrompt combines the persona template with retrieved memory context.
func buildSystemPrompt(name, memoryContext string) string {
	return fmt.Sprintf(systemPromptTemplate, name, memoryContext)
}

// renderHistory flattens recent turns into provider chat roles.
func renderHistory(turns []session.Turn) []historyEntry {
	entries := make([]historyEntry, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Sender == session.SenderAgent {
			role = "assistant"
		}
		entries = append(entries, historyEntry{Role: role, Content: t.Message})
	}
	return entries
}

type historyEntry struct {
	Role    string
	Content string
}

// proactivePrompt asks the model to phrase a follow-up in persona voice,
// weaving in recent conversation when there is any.
func proactivePrompt(name, template string, recent []session.Turn) string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(name)
	b.WriteString(", reaching out to the user unprompted. ")
	b.WriteString("Rephrase the following check-in message in your own warm voice, one or two sentences:\n\n")
	b.WriteString(template)
	if len(recent) > 0 {
		b.WriteString("\n\nRecent conversation, for context:\n")
		for _, t := range recent {
			b.WriteString(t.Sender)
			b.WriteString(": ")
			b.WriteString(t.Message)
			b.WriteString("\n")
		}
	}
	return b.String()
}
