package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"rafflebot/internal/raffle"
	kit "rafflebot/internal/transport"
	"rafflebot/internal/transport/telegram/router"
	logx "rafflebot/pkg/logx"
	"rafflebot/pkg/tgui"
)

const (
	// the widest int64 renders as 20 chars; a full page of them stays
	// inside one Telegram message
	listPageSize    = 150
	commandTimeout  = 30 * time.Second
	bulkPromptText  = "Send the numbers to add, e.g. 1-10, 15; 20. Send /cancel to stop."
	importHintText  = "Send numbers.json as a document to import it."
	clearPromptText = "Clear all %d number(s)? This cannot be undone."
)

func itoa(n int) string { return strconv.Itoa(n) }

func (a *App) registerCommands() {
	cmd := func(name, usage, desc string, h router.HandlerFunc) router.Command {
		return router.Command{
			Name:        name,
			Usage:       usage,
			Description: desc,
			Access:      router.AccessOwnerOnly,
			Timeout:     commandTimeout,
			Handle:      h,
		}
	}
	help := cmd("help", "/help", "Show commands", a.handleHelp)
	help.Access = router.AccessEveryone
	start := help
	start.Name, start.Hidden = "start", true

	a.router.SetRegistry([]router.Command{
		help,
		start,
		cmd("add", "/add <n>", "Add one number", a.handleAdd),
		cmd("bulk", "/bulk [numbers]", "Add numbers and ranges (1-10, 15; 20)", a.handleBulk),
		cmd("cancel", "/cancel", "Cancel a pending prompt", a.handleCancel),
		cmd("search", "/search <n>", "Check whether a number is in the list", a.handleSearch),
		cmd("list", "/list [page]", "Show all numbers", a.handleList),
		cmd("export", "/export", "Download numbers.json", a.handleExport),
		cmd("import", "/import", "Import numbers from a JSON file", a.handleImportHint),
		cmd("clear", "/clear", "Remove all numbers", a.handleClear),
		cmd("backup", "/backup", "Write a backup now", a.handleBackup),
	}, []router.CallbackRoute{
		{Prefix: "clear", Action: "yes", Access: router.AccessOwnerOnly, Timeout: commandTimeout, Handle: a.handleClearConfirm},
		{Prefix: "clear", Action: "no", Access: router.AccessOwnerOnly, Handle: a.handleClearCancel},
		{Prefix: "list", Action: "page", Access: router.AccessOwnerOnly, Handle: a.handleListPage},
	})
	a.router.SetFallback(a.handleMessage)
}

func (a *App) reply(ctx context.Context, req *router.Request, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	ref, err := a.adapter.SendText(ctx, req.Chat, text, opt)
	if err != nil {
		req.Logger.Warn("reply failed", logx.Err(err))
	}
	return ref, err
}

// finish renders the chat status after an action and logs its outcome.
func (a *App) finish(ctx context.Context, req *router.Request, ss *session, out raffle.Outcome) error {
	if out.Message != "" && !out.Shown {
		req.Logger.Debug("status message dropped (area busy)", logx.String("msg", out.Message))
	}
	a.renderStatus(ctx, ss)
	if errors.Is(out.Err, raffle.ErrSaveFailed) {
		return out.Err
	}
	return nil
}

func (a *App) handleHelp(ctx context.Context, req *router.Request) error {
	_, err := a.reply(ctx, req, a.router.HelpText(), &kit.SendOptions{ParseMode: tgui.ParseMode, DisablePreview: true})
	a.renderStatus(ctx, a.chats.get(req.Chat))
	return err
}

func (a *App) handleAdd(ctx context.Context, req *router.Request) error {
	ss := a.chats.get(req.Chat)
	return a.finish(ctx, req, ss, a.svc.Add(ctx, ss.area, req.Args))
}

func (a *App) handleBulk(ctx context.Context, req *router.Request) error {
	ss := a.chats.get(req.Chat)
	if strings.TrimSpace(req.Args) == "" {
		ss.openBulk(req.FromID)
		_, err := a.reply(ctx, req, bulkPromptText, nil)
		return err
	}
	return a.finish(ctx, req, ss, a.svc.Bulk(ctx, ss.area, req.Args))
}

func (a *App) handleCancel(ctx context.Context, req *router.Request) error {
	ss := a.chats.get(req.Chat)
	if !ss.takeBulk(req.FromID) {
		_, err := a.reply(ctx, req, "Nothing to cancel.", nil)
		return err
	}
	// a cancelled prompt is an empty bulk input
	return a.finish(ctx, req, ss, a.svc.Bulk(ctx, ss.area, ""))
}

func (a *App) handleSearch(ctx context.Context, req *router.Request) error {
	ss := a.chats.get(req.Chat)
	return a.finish(ctx, req, ss, a.svc.Search(ss.area, req.Args))
}

// handleMessage receives plain text and documents: a bulk prompt opened by
// the sender consumes the text, a document is imported.
func (a *App) handleMessage(ctx context.Context, req *router.Request) error {
	ss := a.chats.get(req.Chat)
	switch {
	case req.Document != nil:
		return a.importDocument(ctx, req, ss)
	case ss.takeBulk(req.FromID):
		return a.finish(ctx, req, ss, a.svc.Bulk(ctx, ss.area, req.Text))
	case req.Update.Message != nil && req.Update.Message.IsGroup:
		return nil
	default:
		_, err := a.reply(ctx, req, "Use /help to see the commands.", nil)
		return err
	}
}

func (a *App) handleImportHint(ctx context.Context, req *router.Request) error {
	_, err := a.reply(ctx, req, importHintText, nil)
	return err
}

func (a *App) importDocument(ctx context.Context, req *router.Request, ss *session) error {
	doc := req.Document
	limit := a.config().MaxImportBytes()
	if doc.Size > limit {
		_, err := a.reply(ctx, req, "File too large (max "+humanize.IBytes(uint64(limit))+").", nil)
		return err
	}
	rc, err := a.adapter.Download(ctx, *doc)
	if err != nil {
		_, _ = a.reply(ctx, req, "Could not download the file.", nil)
		return fmt.Errorf("download %s: %w", doc.FileName, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		_, _ = a.reply(ctx, req, "Could not download the file.", nil)
		return fmt.Errorf("read %s: %w", doc.FileName, err)
	}
	if int64(len(data)) > limit {
		_, err := a.reply(ctx, req, "File too large (max "+humanize.IBytes(uint64(limit))+").", nil)
		return err
	}
	req.Logger.Info("import file received", logx.String("name", doc.FileName), logx.String("size", humanize.Bytes(uint64(len(data)))))
	return a.finish(ctx, req, ss, a.svc.Import(ctx, ss.area, data))
}

func (a *App) handleExport(ctx context.Context, req *router.Request) error {
	art := a.svc.Export()
	_, err := a.adapter.SendFile(ctx, req.Chat, kit.File{
		Name:    art.Name,
		Caption: "Count: " + itoa(art.Count),
		Data:    art.Data,
	})
	if err != nil {
		_, _ = a.reply(ctx, req, "Could not send the export.", nil)
		return fmt.Errorf("send export: %w", err)
	}
	req.Logger.Info("export sent", logx.Int("count", art.Count), logx.String("size", humanize.Bytes(uint64(len(art.Data)))))
	return nil
}

// listPage renders one page of the list as HTML plus its nav buttons.
func (a *App) listPage(index int) (string, *kit.SendOptions) {
	view := a.svc.List()
	page := tgui.Paginate(view.Numbers, index, listPageSize)
	parts := []tgui.H{tgui.B(view.CountText())}
	if view.Count > 0 {
		parts = append(parts, tgui.Pre(raffle.FormatList(page.Items)))
		if page.Pages > 1 {
			parts = append(parts, tgui.I(page.Label()))
		}
	}
	return tgui.JoinH("\n", parts...).String(), &kit.SendOptions{
		ParseMode: tgui.ParseMode,
		Buttons:   page.Nav("list", "page"),
	}
}

func (a *App) handleList(ctx context.Context, req *router.Request) error {
	index := 0
	if n, err := strconv.Atoi(strings.TrimSpace(req.Args)); err == nil && n > 0 {
		index = n - 1
	}
	text, opt := a.listPage(index)
	_, err := a.reply(ctx, req, text, opt)
	return err
}

func (a *App) handleListPage(ctx context.Context, req *router.Request) error {
	index, err := strconv.Atoi(req.Payload)
	if err != nil {
		return fmt.Errorf("bad page %q", req.Payload)
	}
	text, opt := a.listPage(index)
	return a.adapter.EditText(ctx, a.callbackRef(req), text, opt)
}

func (a *App) callbackRef(req *router.Request) kit.MessageRef {
	return kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.MessageID}
}

func (a *App) handleClear(ctx context.Context, req *router.Request) error {
	_, err := a.reply(ctx, req, fmt.Sprintf(clearPromptText, a.svc.Store().Size()),
		&kit.SendOptions{Buttons: tgui.Confirm("clear", "")})
	return err
}

func (a *App) handleClearConfirm(ctx context.Context, req *router.Request) error {
	ss := a.chats.get(req.Chat)
	out := a.svc.Clear(ctx, ss.area)
	note := "Cleared."
	if out.Err != nil {
		note = out.Message
	}
	if err := a.adapter.EditText(ctx, a.callbackRef(req), note, nil); err != nil {
		req.Logger.Debug("confirm edit failed", logx.Err(err))
	}
	return a.finish(ctx, req, ss, out)
}

func (a *App) handleClearCancel(ctx context.Context, req *router.Request) error {
	return a.adapter.EditText(ctx, a.callbackRef(req), "Clear cancelled.", nil)
}

func (a *App) handleBackup(ctx context.Context, req *router.Request) error {
	res, err := a.backups.WriteNow()
	if err != nil {
		_, _ = a.reply(ctx, req, "Backup failed: "+err.Error(), nil)
		return err
	}
	_, err = a.reply(ctx, req, fmt.Sprintf("Backup written: %s (%d number(s), %s).",
		res.Path, res.Count, humanize.Bytes(uint64(res.Bytes))), nil)
	return err
}
