// Package main - autoreply.go
//
// AutoReplier answers greetings in the server chat so an unattended
// player does not look like a bot. It reads the chat lines the log
// watcher already tails:
//
//	[12:00:01] [Render thread/INFO]: [System] [CHAT] [VIP] Bob: salut Dayti
//	[12:00:02] [Render thread/INFO]: [System] [CHAT] Bob » yo
//
// Rules:
//   - Own lines, server lines and lines without a sender are ignored
//   - "re" is answered with "re"
//   - A greeting word answers when the message names the player, or when
//     it arrives within greet_window of the login
//   - At most one reply per cooldown; a reply waits for a quiet moment of
//     the controller and is dropped after max_delay
package main

import (
	"regexp"
	"strings"
	"time"
)

// ChatSource hands out log lines once
type ChatSource interface {
	LinesAfter(cursor uint64) ([]string, uint64)
}

var (
	chatContent = regexp.MustCompile(`\[CHAT\]\s*(.+)$`)
	chatColors  = regexp.MustCompile(`§.`)
	chatRank    = regexp.MustCompile(`^(?:\[[^\]]*\]\s*)+`)
	chatColon   = regexp.MustCompile(`^([^:»]+?):\s*(.+)$`)
	chatArrow   = regexp.MustCompile(`^([^»]+?)\s*»\s*(.+)$`)
	chatWords   = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// Lines starting with these come from the server
var serverPrefixes = []string{"»", "Téléporté", "Mode de vol", "PASSE DE COMBAT", "SurvivalWorld"}

// ChatMessage is one player line
type ChatMessage struct {
	Sender string
	Text   string
}

// ParseChatLine extracts the sender and text of a player chat line
func ParseChatLine(line string) (ChatMessage, bool) {
	m := chatContent.FindStringSubmatch(line)
	if m == nil {
		return ChatMessage{}, false
	}
	content := strings.TrimSpace(chatColors.ReplaceAllString(m[1], ""))
	for _, p := range serverPrefixes {
		if strings.HasPrefix(content, p) {
			return ChatMessage{}, false
		}
	}
	content = chatRank.ReplaceAllString(content, "")

	parts := chatColon.FindStringSubmatch(content)
	if parts == nil {
		parts = chatArrow.FindStringSubmatch(content)
	}
	if parts == nil {
		return ChatMessage{}, false
	}
	// The last word before the separator is the name. Titles come first
	// and badge glyphs decode as "?".
	fields := strings.Fields(parts[1])
	if len(fields) == 0 {
		return ChatMessage{}, false
	}
	sender := fields[len(fields)-1]
	if i := strings.LastIndex(sender, "?"); i >= 0 {
		sender = sender[i+1:]
	}
	sender = strings.Trim(sender, "[]<>")
	text := strings.TrimSpace(parts[2])
	if sender == "" || text == "" {
		return ChatMessage{}, false
	}
	return ChatMessage{Sender: sender, Text: text}, true
}

// AutoReplier decides and sends chat replies
type AutoReplier struct {
	cfg      AutoReplyConfig
	player   string
	triggers map[string]bool
	send     func(text string)

	cursor    uint64
	joinedAt  time.Time
	lastReply time.Time
	next      int

	pending   string
	pendingAt time.Time
}

// NewAutoReplier creates a replier. send types a chat line in game.
func NewAutoReplier(cfg AutoReplyConfig, send func(text string)) *AutoReplier {
	r := &AutoReplier{
		cfg:      cfg,
		player:   strings.ToLower(strings.TrimSpace(cfg.Player)),
		triggers: make(map[string]bool, len(cfg.Triggers)),
		send:     send,
	}
	for _, t := range cfg.Triggers {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			r.triggers[t] = true
		}
	}
	LogInfo("Auto-reply ready for %s (%d trigger words)", cfg.Player, len(r.triggers))
	return r
}

// Skip ignores every line read so far
func (r *AutoReplier) Skip(src ChatSource) {
	_, r.cursor = src.LinesAfter(r.cursor)
}

// Joined opens the greeting window
func (r *AutoReplier) Joined(now time.Time) {
	r.joinedAt = now
	r.pending = ""
}

// Tick reads new chat lines and sends a pending reply when idle is true
func (r *AutoReplier) Tick(now time.Time, src ChatSource, idle bool) {
	var lines []string
	lines, r.cursor = src.LinesAfter(r.cursor)
	for _, line := range lines {
		msg, ok := ParseChatLine(line)
		if !ok {
			continue
		}
		if reply := r.Reply(now, msg); reply != "" {
			r.pending, r.pendingAt = reply, now
		}
	}

	if r.pending == "" {
		return
	}
	if now.Sub(r.pendingAt) > ms(r.cfg.MaxDelay) {
		LogDebug("Auto-reply %q dropped, no quiet moment", r.pending)
		r.pending = ""
		return
	}
	if !idle || now.Sub(r.lastReply) < ms(r.cfg.Cooldown) {
		return
	}
	LogInfo("Auto-reply: %s", r.pending)
	r.send(r.pending)
	r.lastReply = now
	r.pending = ""
}

// Reply returns the answer to msg, or "" when it needs none
func (r *AutoReplier) Reply(now time.Time, msg ChatMessage) string {
	sender := strings.ToLower(msg.Sender)
	if r.player != "" && strings.Contains(sender, r.player) {
		return ""
	}
	if !r.lastReply.IsZero() && now.Sub(r.lastReply) < ms(r.cfg.Cooldown) {
		LogDebug("Auto-reply cooldown, ignoring %s: %s", msg.Sender, msg.Text)
		return ""
	}

	text := strings.ToLower(strings.TrimSpace(msg.Text))
	if text == "re" {
		return "re"
	}

	greeted, named := false, false
	for _, w := range chatWords.FindAllString(text, -1) {
		if r.triggers[w] {
			greeted = true
		}
		if r.player != "" && w == r.player {
			named = true
		}
	}
	if !greeted {
		return ""
	}
	window := time.Duration(r.cfg.GreetWindow) * time.Second
	fresh := !r.joinedAt.IsZero() && now.Sub(r.joinedAt) <= window
	if !named && !fresh {
		return ""
	}
	LogInfo("Greeting from %s: %s", msg.Sender, msg.Text)
	return r.pick(msg.Sender)
}

func (r *AutoReplier) pick(sender string) string {
	if len(r.cfg.Replies) == 0 {
		return ""
	}
	reply := r.cfg.Replies[r.next%len(r.cfg.Replies)]
	r.next++
	return strings.ReplaceAll(reply, "{sender}", sender)
}
