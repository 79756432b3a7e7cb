package tgui

import (
	"errors"
	"strings"

	kit "rafflebot/internal/transport"
)

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
const MaxCallbackDataLen = 64

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")

// Data formats inline callback data as "prefix:action[:payload]".
func Data(prefix, action, payload string) (string, error) {
	s := strings.TrimSpace(prefix) + ":" + strings.TrimSpace(action)
	if payload != "" {
		s += ":" + payload
	}
	if len(s) > MaxCallbackDataLen {
		return "", ErrCallbackDataTooLong
	}
	return s, nil
}

// Btn builds a callback button. Data that does not fit is replaced by a
// no-op "prefix:action" so the button still renders.
func Btn(text, prefix, action, payload string) kit.Button {
	d, err := Data(prefix, action, payload)
	if err != nil {
		d = strings.TrimSpace(prefix) + ":" + strings.TrimSpace(action)
	}
	return kit.Button{Text: text, Data: d}
}

// Confirm builds a Yes/No pair that routes to prefix:yes and prefix:no.
func Confirm(prefix, payload string) []kit.Button {
	return []kit.Button{
		Btn("Yes", prefix, "yes", payload),
		Btn("No", prefix, "no", payload),
	}
}
