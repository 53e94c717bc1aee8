package main

import (
	"testing"
	"time"
)

func TestParseChatLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		sender string
		text   string
		ok     bool
	}{
		{"colon", "[12:00:01] [Render thread/INFO]: [System] [CHAT] Bob: salut", "Bob", "salut", true},
		{"rank and arrow", "[12:00:01] [Render thread/INFO]: [System] [CHAT] [VIP] Alice » yo Dayti", "Alice", "yo Dayti", true},
		{"badge glyphs", "[12:00:01] [Render thread/INFO]: [System] [CHAT] ?Divinum?Carl: Yoo", "Carl", "Yoo", true},
		{"color codes", "[12:00:01] [Render thread/INFO]: [System] [CHAT] §6[Mod] §fEve: hello", "Eve", "hello", true},
		{"title before name", "[12:00:01] [Render thread/INFO]: [System] [CHAT] Fermier Dan: cc", "Dan", "cc", true},
		{"text keeps colons", "[12:00:01] [Render thread/INFO]: [System] [CHAT] Bob: rdv: 18h", "Bob", "rdv: 18h", true},
		{"server teleport", "[12:00:01] [Render thread/INFO]: [System] [CHAT] Téléporté à ferme1", "", "", false},
		{"server arrow", "[12:00:01] [Render thread/INFO]: [System] [CHAT] » Bienvenue sur le serveur", "", "", false},
		{"not chat", "[12:00:01] [Render thread/INFO]: Loaded 1243 advancements", "", "", false},
		{"no sender", "[12:00:01] [Render thread/INFO]: [System] [CHAT] Votre Station de Croissance est déjà pleine d'eau", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := ParseChatLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (%+v)", ok, tt.ok, msg)
			}
			if ok && (msg.Sender != tt.sender || msg.Text != tt.text) {
				t.Errorf("got %q %q, want %q %q", msg.Sender, msg.Text, tt.sender, tt.text)
			}
		})
	}
}

func replyConfig() AutoReplyConfig {
	cfg := DefaultConfig().AutoReply
	cfg.Enabled = true
	cfg.Player = "Dayti"
	cfg.Replies = []string{"salut {sender}", "yo"}
	return cfg
}

func TestReplyRules(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name   string
		joined time.Duration // since login, 0 means never joined
		msg    ChatMessage
		want   string
	}{
		{"named greeting", 0, ChatMessage{"Bob", "salut Dayti ca va"}, "salut Bob"},
		{"name is case-insensitive", 0, ChatMessage{"Bob", "Yo DAYTI"}, "salut Bob"},
		{"greeting without name", 0, ChatMessage{"Bob", "salut tout le monde"}, ""},
		{"greeting just after login", 10 * time.Second, ChatMessage{"Bob", "bonjour"}, "salut Bob"},
		{"greeting long after login", 10 * time.Minute, ChatMessage{"Bob", "bonjour"}, ""},
		{"name without greeting", 0, ChatMessage{"Bob", "Dayti tu vends du ble ?"}, ""},
		{"re", 0, ChatMessage{"Bob", " RE "}, "re"},
		{"own line", 10 * time.Second, ChatMessage{"Dayti", "salut"}, ""},
		{"name inside a word", 0, ChatMessage{"Bob", "salut Daytiii"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewAutoReplier(replyConfig(), func(string) {})
			if tt.joined > 0 {
				r.Joined(now.Add(-tt.joined))
			}
			if got := r.Reply(now, tt.msg); got != tt.want {
				t.Errorf("Reply = %q, want %q", got, tt.want)
			}
		})
	}
}

// chatLog is an in-memory ChatSource
type chatLog struct {
	lines []string
}

func (c *chatLog) say(line string) {
	c.lines = append(c.lines, "[12:00:00] [Render thread/INFO]: [System] [CHAT] "+line)
}

func (c *chatLog) LinesAfter(cursor uint64) ([]string, uint64) {
	if cursor >= uint64(len(c.lines)) {
		return nil, uint64(len(c.lines))
	}
	return append([]string(nil), c.lines[cursor:]...), uint64(len(c.lines))
}

func TestAutoReplierWaitsForIdle(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)
	src := &chatLog{}
	src.say("Bob: old line, salut Dayti")

	var sent []string
	r := NewAutoReplier(replyConfig(), func(text string) { sent = append(sent, text) })
	r.Skip(src)

	src.say("Bob: salut Dayti")
	r.Tick(now, src, false)
	if len(sent) != 0 {
		t.Fatalf("replied while busy: %v", sent)
	}

	now = now.Add(5 * time.Second)
	r.Tick(now, src, true)
	if len(sent) != 1 || sent[0] != "salut Bob" {
		t.Fatalf("sent = %v", sent)
	}

	// the old line was skipped and the answered one is not read again
	now = now.Add(time.Minute)
	r.Tick(now, src, true)
	if len(sent) != 1 {
		t.Errorf("sent = %v", sent)
	}
}

func TestAutoReplierCooldown(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)
	src := &chatLog{}
	var sent []string
	r := NewAutoReplier(replyConfig(), func(text string) { sent = append(sent, text) })

	src.say("Bob: re")
	r.Tick(now, src, true)

	// within the 3s cooldown the second greeting is ignored
	now = now.Add(time.Second)
	src.say("Alice: yo Dayti")
	r.Tick(now, src, true)
	now = now.Add(5 * time.Second)
	r.Tick(now, src, true)

	src.say("Alice: yo Dayti")
	r.Tick(now, src, true)

	if len(sent) != 2 || sent[0] != "re" || sent[1] != "salut Alice" {
		t.Errorf("sent = %v", sent)
	}
}

func TestAutoReplierDropsStaleReply(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)
	src := &chatLog{}
	var sent []string
	r := NewAutoReplier(replyConfig(), func(text string) { sent = append(sent, text) })

	src.say("Bob: salut Dayti")
	r.Tick(now, src, false)
	now = now.Add(61 * time.Second)
	r.Tick(now, src, false)
	r.Tick(now, src, true)

	if len(sent) != 0 {
		t.Errorf("sent a reply a minute late: %v", sent)
	}
}

func TestAutoReplierRotatesReplies(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)
	r := NewAutoReplier(replyConfig(), func(string) {})

	first := r.Reply(now, ChatMessage{"Bob", "salut Dayti"})
	second := r.Reply(now, ChatMessage{"Bob", "salut Dayti"})
	third := r.Reply(now, ChatMessage{"Bob", "salut Dayti"})
	if first != "salut Bob" || second != "yo" || third != "salut Bob" {
		t.Errorf("replies = %q %q %q", first, second, third)
	}
}
