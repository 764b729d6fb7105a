package irc

import (
	"bytes"
	"strings"
	"twitchtts/internal/app/ports"
)

var crlf = []byte("\r\n")

const (
	twitchHost  = "tmi.twitch.tv"
	pingLine    = "PING :" + twitchHost
	hostSuffix  = "." + twitchHost
	channelMark = '#'
)

type kind int

const (
	kindOther kind = iota
	kindPing
	kindJoin
	kindMessage
	kindReconnect
	kindNotice
)

// message is one tokenized protocol line:
// [@tags] [:nick!user@host] COMMAND [params...] [:trailing]
type message struct {
	nick, user, host string
	hasPrefix        bool

	command string
	params  []string

	trailing    string
	hasTrailing bool
}

// event is what a line means to the stream.
type event struct {
	kind    kind
	channel string // join echo, without '#'
	reply   string // ping
	chat    ports.ChatMessage
	text    string // notice
}

func tokenize(line string) (message, bool) {
	var msg message
	rest := line

	// tags are not requested but tolerated
	if strings.HasPrefix(rest, "@") {
		sp := strings.IndexByte(rest, ' ')
		if sp == -1 {
			return msg, false
		}
		rest = rest[sp+1:]
	}

	if strings.HasPrefix(rest, ":") {
		sp := strings.IndexByte(rest, ' ')
		if sp == -1 {
			return msg, false
		}
		msg.hasPrefix = true
		msg.nick, msg.user, msg.host = splitPrefix(rest[1:sp])
		rest = rest[sp+1:]
	}

	for rest != "" {
		if rest[0] == ' ' {
			rest = rest[1:]
			continue
		}

		if rest[0] == ':' && msg.command != "" {
			msg.trailing = rest[1:]
			msg.hasTrailing = true
			break
		}

		tok := rest
		if sp := strings.IndexByte(rest, ' '); sp != -1 {
			tok, rest = rest[:sp], rest[sp+1:]
		} else {
			rest = ""
		}

		if msg.command == "" {
			msg.command = tok
		} else {
			msg.params = append(msg.params, tok)
		}
	}

	return msg, msg.command != ""
}

func splitPrefix(prefix string) (nick, user, host string) {
	excl := strings.IndexByte(prefix, '!')
	at := strings.IndexByte(prefix, '@')
	if excl == -1 || at == -1 || at < excl {
		return prefix, "", ""
	}
	return prefix[:excl], prefix[excl+1 : at], prefix[at+1:]
}

// classify maps a raw line to an event. own is the bot's login, used to
// recognise join echoes that belong to this session. A ping is answered with
// "PONG :tmi.twitch.tv" rather than a bare "PONG": the server expects its
// argument echoed back.
func classify(line, own string) event {
	// keep-alive
	if line == pingLine {
		return event{kind: kindPing, reply: "PONG :" + twitchHost}
	}

	msg, ok := tokenize(line)
	if !ok {
		return event{}
	}

	switch msg.command {
	case "JOIN":
		if !msg.fromChatUser() || !strings.EqualFold(msg.nick, own) {
			return event{}
		}
		if ch, ok := channelName(msg.target()); ok {
			return event{kind: kindJoin, channel: ch}
		}
	case "PRIVMSG":
		if !msg.fromChatUser() || len(msg.params) != 1 || !msg.hasTrailing || msg.trailing == "" {
			return event{}
		}
		if _, ok := channelName(msg.params[0]); !ok {
			return event{}
		}
		return event{kind: kindMessage, chat: ports.ChatMessage{
			Channel:  msg.params[0],
			Username: strings.ToLower(msg.nick),
			Text:     msg.trailing,
		}}
	case "RECONNECT":
		if !msg.hasPrefix || msg.nick == twitchHost {
			return event{kind: kindReconnect}
		}
	case "NOTICE":
		return event{kind: kindNotice, text: msg.trailing}
	}

	return event{}
}

// target returns the JOIN channel whether it was sent as a middle param
// (Twitch) or as a trailing param (plain IRC servers).
func (m message) target() string {
	if len(m.params) == 1 && !m.hasTrailing {
		return m.params[0]
	}
	if len(m.params) == 0 && m.hasTrailing {
		return m.trailing
	}
	return ""
}

// fromChatUser reports whether the prefix has the nick!user@user.tmi.twitch.tv shape.
func (m message) fromChatUser() bool {
	if !m.hasPrefix || !isName(m.nick) || !isName(m.user) {
		return false
	}
	label, ok := strings.CutSuffix(m.host, hostSuffix)
	return ok && isName(label)
}

func channelName(s string) (string, bool) {
	if len(s) < 2 || s[0] != channelMark || !isName(s[1:]) {
		return "", false
	}
	return s[1:], true
}

// isName reports whether s is a non-empty [a-zA-Z0-9_]+ token.
func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

// splitLines cuts buf into complete CRLF-terminated lines and returns the
// unterminated remainder. Empty lines are dropped.
func splitLines(buf []byte) (lines []string, rest []byte) {
	for {
		idx := bytes.Index(buf, crlf)
		if idx == -1 {
			return lines, buf
		}
		if idx > 0 {
			lines = append(lines, string(buf[:idx]))
		}
		buf = buf[idx+2:]
	}
}

// Inspect classifies a raw line the way Poll does, as seen by the account
// own. It returns the kind name and, for chat lines, the decoded message.
func Inspect(line, own string) (string, ports.ChatMessage) {
	ev := classify(strings.TrimRight(line, "\r\n"), strings.ToLower(own))
	return ev.kind.String(), ev.chat
}
