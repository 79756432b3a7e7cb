// Package router turns chat updates into handler calls. All handlers run on
// one worker, so actions are applied one at a time in arrival order.
package router

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	kit "rafflebot/internal/transport"
	logx "rafflebot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration
	// Hidden keeps the command out of the menu and help.
	Hidden bool
	Handle HandlerFunc
}

// CallbackRoute handles inline button data of the form "prefix:action[:payload]".
type CallbackRoute struct {
	Prefix  string
	Action  string
	Access  Access
	Timeout time.Duration
	Handle  HandlerFunc
}

type Request struct {
	Update    kit.Update
	Chat      kit.ChatTarget
	FromID    int64
	MessageID int
	// Command is the matched command name, "cb:<prefix>:<action>" for
	// callbacks, or "" for plain messages.
	Command string
	// Args is the raw text after the command word, untouched.
	Args     string
	Text     string
	Payload  string
	Document *kit.Document
	ReqID    string
	Logger   logx.Logger
}

type Config struct {
	Owners     []int64
	RatePerSec float64
	Burst      int
	QueueSize  int
}

var (
	ErrQueueFull  = errors.New("action queue full")
	ErrNotRunning = errors.New("router not running")
)

// Router is safe for concurrent use.
type Router struct {
	log     logx.Logger
	adapter kit.Adapter
	limiter *userLimiter

	mu        sync.RWMutex
	commands  map[string]*Command
	aliases   map[string]*Command
	callbacks map[string]CallbackRoute
	fallback  HandlerFunc
	owners    []int64

	jobs chan job
	// runMu guards running so Enqueue never sends after Run returned.
	runMu   sync.RWMutex
	running bool
}

type job struct {
	name string
	fn   func(ctx context.Context)
}

func New(log logx.Logger, adapter kit.Adapter, cfg Config) *Router {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	return &Router{
		log:       log,
		adapter:   adapter,
		limiter:   newUserLimiter(cfg.RatePerSec, cfg.Burst),
		commands:  map[string]*Command{},
		aliases:   map[string]*Command{},
		callbacks: map[string]CallbackRoute{},
		owners:    append([]int64(nil), cfg.Owners...),
		jobs:      make(chan job, size),
	}
}

// SetRegistry replaces the command and callback tables.
func (r *Router) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	commands := map[string]*Command{}
	aliases := map[string]*Command{}
	for i := range cmds {
		c := cmds[i]
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		commands[name] = &c
		for _, a := range c.Aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				aliases[a] = &c
			}
		}
	}
	callbacks := map[string]CallbackRoute{}
	for _, cb := range cbs {
		if cb.Prefix == "" || cb.Action == "" || cb.Handle == nil {
			continue
		}
		callbacks[cb.Prefix+":"+cb.Action] = cb
	}

	r.mu.Lock()
	r.commands, r.aliases, r.callbacks = commands, aliases, callbacks
	r.mu.Unlock()
}

// SetFallback handles messages that are not commands (prompt replies,
// uploaded documents).
func (r *Router) SetFallback(h HandlerFunc) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// SetOwners updates the allow-list. An empty list allows everyone.
func (r *Router) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	r.mu.Lock()
	r.owners = cp
	r.mu.Unlock()
}

func (r *Router) SetRateLimit(perSec float64, burst int) { r.limiter.Configure(perSec, burst) }

func (r *Router) allowed(access Access, userID int64) bool {
	if access == AccessEveryone {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.owners) == 0 {
		return true
	}
	for _, o := range r.owners {
		if o == userID {
			return true
		}
	}
	return false
}

// Commands returns the visible commands sorted by name.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	out := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		if !c.Hidden {
			out = append(out, *c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run consumes updates until ctx is done or updates is closed. Handlers run
// on a single worker in arrival order.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	r.runMu.Lock()
	r.running = true
	r.runMu.Unlock()

	wctx, cancel := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		r.work(wctx)
	}()
	r.log.Info("action loop started", logx.Int("queue_cap", cap(r.jobs)))

	defer func() {
		r.runMu.Lock()
		r.running = false
		r.runMu.Unlock()
		cancel()
		<-workerDone
		r.log.Info("action loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.jobs:
			r.runJob(ctx, j)
		}
	}
}

func (r *Router) runJob(ctx context.Context, j job) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic in action", logx.String("name", j.name), logx.Any("panic", p))
		}
	}()
	j.fn(ctx)
}

// Enqueue schedules fn on the action loop. It returns once fn is queued.
func (r *Router) Enqueue(ctx context.Context, name string, fn func(ctx context.Context)) error {
	r.runMu.RLock()
	defer r.runMu.RUnlock()
	if !r.running {
		return ErrNotRunning
	}
	select {
	case r.jobs <- job{name: name, fn: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.routeMessage(ctx, up)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.routeCallback(ctx, up)
		}
	}
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	req := &Request{
		Update:    up,
		Chat:      chat,
		FromID:    msg.FromID,
		MessageID: msg.ID,
		Text:      msg.Text,
		Document:  msg.Document,
	}

	name, args, isCmd := SplitCommand(msg.Text)
	var (
		h       HandlerFunc
		access  = AccessOwnerOnly
		timeout time.Duration
	)
	if isCmd && msg.Document == nil {
		r.mu.RLock()
		cmd := r.commands[name]
		if cmd == nil {
			cmd = r.aliases[name]
		}
		r.mu.RUnlock()
		if cmd == nil {
			r.reply(ctx, chat, "Unknown command. Try /help")
			return
		}
		req.Command, req.Args = cmd.Name, args
		h, access, timeout = cmd.Handle, cmd.Access, cmd.Timeout
	} else {
		r.mu.RLock()
		h = r.fallback
		r.mu.RUnlock()
		if h == nil {
			return
		}
	}

	if !r.allowed(access, msg.FromID) {
		r.log.Debug("message from non-owner ignored", logx.Int64("from_id", msg.FromID), logx.String("cmd", req.Command))
		if isCmd {
			r.reply(ctx, chat, "Not allowed.")
		}
		return
	}
	if !r.limiter.Allow(msg.FromID) {
		r.reply(ctx, chat, "Slow down, try again in a moment.")
		return
	}
	r.dispatch(ctx, req, h, timeout, func() { r.reply(ctx, chat, "Busy, try again.") }, nil)
}

func (r *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	r.mu.RLock()
	route, ok := r.callbacks[parts[0]+":"+parts[1]]
	r.mu.RUnlock()
	if !ok {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	if !r.allowed(route.Access, cb.FromID) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "Not allowed.")
		return
	}
	if !r.limiter.Allow(cb.FromID) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "Slow down.")
		return
	}
	req := &Request{
		Update:    up,
		Chat:      kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:    cb.FromID,
		MessageID: cb.MessageID,
		Command:   "cb:" + parts[0] + ":" + parts[1],
	}
	if len(parts) == 3 {
		req.Payload = parts[2]
	}
	r.dispatch(ctx, req, route.Handle, route.Timeout,
		func() { _ = r.adapter.AnswerCallback(ctx, cb.ID, "Busy.") },
		func(c context.Context) { _ = r.adapter.AnswerCallback(c, cb.ID, "") },
	)
}

func (r *Router) dispatch(ctx context.Context, req *Request, h HandlerFunc, timeout time.Duration, onBusy func(), after func(context.Context)) {
	req.ReqID = uuid.NewString()
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.FromID),
		logx.String("cmd", req.Command),
	)
	final := Chain(h, MWPanicRecover(r.log), MWRequestLog(r.log), MWTimeout(timeout))
	err := r.Enqueue(ctx, req.Command, func(c context.Context) {
		_ = final(c, req)
		if after != nil {
			after(c)
		}
	})
	if err != nil {
		req.Logger.Warn("action rejected", logx.Err(err))
		onBusy()
	}
}

func (r *Router) reply(ctx context.Context, to kit.ChatTarget, text string) {
	if _, err := r.adapter.SendText(ctx, to, text, nil); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", to.ChatID), logx.Err(err))
	}
}

// SplitCommand splits "/name@bot rest" into ("name", "rest", true). The rest
// is returned trimmed but otherwise verbatim so free-text arguments keep
// their separators.
func SplitCommand(text string) (name, args string, ok bool) {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "/") || len(t) == 1 {
		return "", "", false
	}
	word, rest, _ := strings.Cut(t[1:], " ")
	if i := strings.IndexAny(word, "\n\t"); i >= 0 {
		rest = word[i:] + " " + rest
		word = word[:i]
	}
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", "", false
	}
	return strings.ToLower(word), strings.TrimSpace(rest), true
}
