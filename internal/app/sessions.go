package app

import (
	"context"
	"strings"
	"sync"

	"rafflebot/internal/status"
	kit "rafflebot/internal/transport"
	logx "rafflebot/pkg/logx"
)

// session is the per-chat state: its status area, the message that displays
// it and the users with an open bulk prompt. Only the action loop mutates a
// session.
type session struct {
	chat  kit.ChatTarget
	area  *status.Area
	ref   kit.MessageRef
	shown string
	bulk  map[int64]struct{} // user ids
}

func (ss *session) openBulk(userID int64) { ss.bulk[userID] = struct{}{} }

// takeBulk closes userID's prompt and reports whether one was open.
func (ss *session) takeBulk(userID int64) bool {
	if _, ok := ss.bulk[userID]; !ok {
		return false
	}
	delete(ss.bulk, userID)
	return true
}

type sessions struct {
	mu       sync.Mutex
	policy   status.Policy
	maxStack int
	byChat   map[int64]*session
}

func newSessions(policy status.Policy, maxStack int) *sessions {
	return &sessions{policy: policy, maxStack: maxStack, byChat: map[int64]*session{}}
}

func (s *sessions) get(chat kit.ChatTarget) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss := s.byChat[chat.ChatID]
	if ss == nil {
		ss = &session{chat: chat, area: status.NewArea(s.policy, s.maxStack), bulk: map[int64]struct{}{}}
		s.byChat[chat.ChatID] = ss
	}
	return ss
}

func (s *sessions) configure(policy status.Policy, maxStack int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy, s.maxStack = policy, maxStack
	for _, ss := range s.byChat {
		ss.area.Configure(policy, maxStack)
	}
}

// statusText renders what the status message shows.
func statusText(area *status.Area, count int) string {
	text := strings.TrimSpace(area.Text())
	if text == "" {
		text = "Ready."
	}
	return text + "\n\nCount: " + itoa(count)
}

// renderStatus shows the current status in the chat. The first render sends
// a message, later ones edit it in place. A failed edit (e.g. the message was
// deleted) falls back to a fresh message.
func (a *App) renderStatus(ctx context.Context, ss *session) {
	text := statusText(ss.area, a.svc.Store().Size())
	if text == ss.shown && ss.ref.MessageID != 0 {
		return
	}
	if ss.ref.MessageID != 0 {
		err := a.adapter.EditText(ctx, ss.ref, text, nil)
		if err == nil {
			ss.shown = text
			return
		}
		a.log.Debug("status edit failed; sending new message", logx.Int64("chat_id", ss.chat.ChatID), logx.Err(err))
	}
	ref, err := a.adapter.SendText(ctx, ss.chat, text, nil)
	if err != nil {
		a.log.Warn("status send failed", logx.Int64("chat_id", ss.chat.ChatID), logx.Err(err))
		return
	}
	ss.ref, ss.shown = ref, text
}
