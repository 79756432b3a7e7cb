package router

import (
	"context"
	"html"
	"strings"
	"time"

	kit "rafflebot/internal/transport"
	logx "rafflebot/pkg/logx"
)

// sanitizeTelegramCommand converts a name into a Telegram bot command:
// [a-z0-9_]{1,32}, starting with a letter.
func sanitizeTelegramCommand(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == '-' || r == ' ' || r == '/':
			if b.Len() > 0 && !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	return out
}

// MenuCommands builds the bot command menu from the visible commands.
func (r *Router) MenuCommands() []kit.BotCommand {
	cmds := r.Commands()
	out := make([]kit.BotCommand, 0, len(cmds))
	seen := map[string]bool{}
	for _, c := range cmds {
		name := sanitizeTelegramCommand(c.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		desc := strings.ReplaceAll(strings.TrimSpace(c.Description), "\n", " ")
		out = append(out, kit.BotCommand{Command: name, Description: desc})
	}
	return out
}

// PublishMenu pushes the command menu when the adapter supports it.
func (r *Router) PublishMenu(ctx context.Context) {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := up.UpdateMenuCommands(ctx, r.MenuCommands()); err != nil {
		r.log.Warn("menu update failed", logx.Err(err))
	}
}

// HelpText renders the command list for ParseMode HTML.
func (r *Router) HelpText() string {
	lines := []string{"<b>Commands</b>"}
	for _, c := range r.Commands() {
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		line := "<code>" + html.EscapeString(usage) + "</code>"
		if c.Description != "" {
			line += " - " + html.EscapeString(c.Description)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
