// Package widget runs one conversation: it owns the current session, replays
// history, reconciles pushed rows with what it already rendered and drives
// the send pipeline.
package widget

import (
	"context"
	"errors"
	"sync"

	"chat-widget/internal/chat"
	"chat-widget/internal/config"
	"chat-widget/internal/logger"
	"chat-widget/internal/render"
	"chat-widget/internal/session"
)

// FallbackWelcome is shown when no welcome text is configured.
const FallbackWelcome = "Hello! How can I help you today?"

var (
	ErrNotStarted   = errors.New("widget: no active conversation")
	ErrClosed       = errors.New("widget: closed")
	ErrEmptyMessage = errors.New("widget: message is empty")
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseResuming
	PhaseFresh
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseResuming:
		return "resuming"
	case PhaseFresh:
		return "fresh"
	case PhaseActive:
		return "active"
	default:
		return "idle"
	}
}

type Options struct {
	Config     *config.Config
	Sessions   *session.Manager
	Dispatcher Dispatcher
	View       View
	// Store and Subscriber are optional. Without them the widget keeps no
	// history and receives no pushes.
	Store      MessageStore
	Subscriber Subscriber
	Pacing     Pacing
}

// Widget is one embedded chat instance.
type Widget struct {
	cfg        *config.Config
	sessions   *session.Manager
	dispatcher Dispatcher
	store      MessageStore
	subscriber Subscriber
	view       View
	pacing     Pacing

	mu         sync.Mutex
	phase      Phase
	sessionID  string
	generation uint64
	sub        Subscription
	seen       map[string]bool
	closed     bool

	viewMu sync.Mutex
}

func New(opts Options) (*Widget, error) {
	if opts.Config == nil {
		return nil, errors.New("widget: config is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("widget: session manager is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("widget: dispatcher is required")
	}
	if opts.View == nil {
		return nil, errors.New("widget: view is required")
	}
	pacing := opts.Pacing
	if pacing.Sleep == nil {
		pacing.Sleep = sleepContext
	}
	return &Widget{
		cfg:        opts.Config,
		sessions:   opts.Sessions,
		dispatcher: opts.Dispatcher,
		store:      opts.Store,
		subscriber: opts.Subscriber,
		view:       opts.View,
		pacing:     pacing,
		seen:       map[string]bool{},
	}, nil
}

func (w *Widget) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

func (w *Widget) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

func (w *Widget) botID() string {
	return w.cfg.BotID()
}

// Open resumes the stored session if there is one. Otherwise the widget stays
// idle until StartConversation.
func (w *Widget) Open(ctx context.Context) error {
	if w.isClosed() {
		return ErrClosed
	}
	id, ok := w.sessions.Lookup(w.botID())
	if !ok {
		logger.DebugCF("widget", "No stored session", map[string]interface{}{"bot_id": w.botID()})
		return nil
	}
	w.activate(ctx, id, true)
	return nil
}

// StartConversation discards any stored session and begins a new one.
func (w *Widget) StartConversation(ctx context.Context) error {
	if w.isClosed() {
		return ErrClosed
	}
	w.sessions.Reset(w.botID())
	h := w.sessions.Create(w.botID())
	w.activate(ctx, h.ID, false)
	return nil
}

// Reset clears the message list and starts over with a new session.
func (w *Widget) Reset(ctx context.Context) error {
	if w.isClosed() {
		return ErrClosed
	}
	w.show(func(v View) { v.Clear() })
	return w.StartConversation(ctx)
}

// Close releases the push subscription. Later calls fail with ErrClosed and
// replies still in flight are dropped.
func (w *Widget) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.generation++
	w.phase = PhaseIdle
	sub := w.sub
	w.sub = nil
	w.mu.Unlock()

	if sub != nil {
		return sub.Unsubscribe()
	}
	return nil
}

func (w *Widget) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// current reports whether gen is still the live generation.
func (w *Widget) current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && w.generation == gen
}

func (w *Widget) setPhase(gen uint64, p Phase) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.generation != gen {
		return false
	}
	w.phase = p
	return true
}

func (w *Widget) markSeen(id string) {
	if id == "" {
		return
	}
	w.mu.Lock()
	w.seen[id] = true
	w.mu.Unlock()
}

// activate makes id the current session. The previous subscription is
// released before the new one is acquired.
func (w *Widget) activate(ctx context.Context, id string, resuming bool) {
	w.mu.Lock()
	old := w.sub
	w.sub = nil
	w.sessionID = id
	w.generation++
	gen := w.generation
	w.seen = map[string]bool{}
	if resuming {
		w.phase = PhaseResuming
	} else {
		w.phase = PhaseFresh
	}
	w.mu.Unlock()

	if old != nil {
		if err := old.Unsubscribe(); err != nil {
			logger.DebugCF("widget", "Unsubscribe failed", map[string]interface{}{"error": err.Error()})
		}
	}

	logger.InfoCF("widget", "Session activated", map[string]interface{}{
		"bot_id":     w.botID(),
		"session_id": id,
		"resuming":   resuming,
	})

	if resuming && w.replayHistory(ctx, id, gen) {
		if w.setPhase(gen, PhaseActive) {
			w.subscribe(ctx, id, gen)
		}
		return
	}

	if !w.setPhase(gen, PhaseFresh) {
		return
	}
	w.welcome(ctx, id, gen)
	if w.setPhase(gen, PhaseActive) {
		w.subscribe(ctx, id, gen)
	}
}

// replayHistory renders stored rows and reports whether there were any.
func (w *Widget) replayHistory(ctx context.Context, id string, gen uint64) bool {
	if w.store == nil {
		return false
	}
	rows, err := w.store.History(ctx, id)
	if err != nil {
		logger.WarnCF("widget", "History unavailable", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
		return false
	}
	if len(rows) == 0 || !w.current(gen) {
		return false
	}

	for _, m := range rows {
		w.markSeen(m.ID)
	}
	w.show(func(v View) {
		for _, m := range rows {
			v.Append(chat.Entry{Sender: m.Sender, Content: m.Content, Origin: chat.OriginHistory, Kind: chat.KindMessage})
		}
	})
	return true
}

func (w *Widget) welcome(ctx context.Context, id string, gen uint64) {
	text := w.cfg.Branding.WelcomeText
	if w.cfg.Behavior.WebhookGreeting {
		reply, err := w.dispatcher.LoadPreviousSession(ctx, id)
		var de *chat.DispatchError
		switch {
		case err == nil:
			text = reply.Output
		case errors.As(err, &de) && de.Empty():
			logger.DebugCF("widget", "Webhook greeting was empty", map[string]interface{}{"session_id": id})
		default:
			// An unreachable workflow gets a notice instead of a welcome.
			logger.WarnCF("widget", "Webhook greeting failed", map[string]interface{}{"error": err.Error()})
			notice := w.cfg.Messages.ErrorConnection
			if notice == "" {
				notice = "Unable to connect. Please try again later."
			}
			if w.current(gen) {
				w.show(func(v View) {
					v.Append(chat.Entry{Sender: chat.SenderBot, Content: notice, Origin: chat.OriginSynchronous, Kind: chat.KindError})
				})
			}
			return
		}
	}
	if text == "" {
		text = FallbackWelcome
	}
	if !w.current(gen) {
		return
	}

	w.show(func(v View) {
		v.Append(w.botEntry(chat.SenderBot, text, chat.OriginSynchronous))
	})
	w.persist(ctx, chat.Message{
		SessionID: id,
		BotID:     w.botID(),
		Content:   text,
		Sender:    chat.SenderBot,
		Metadata:  chat.Metadata{chat.MetaWelcome: true},
	})
}

func (w *Widget) subscribe(ctx context.Context, id string, gen uint64) {
	if w.subscriber == nil {
		return
	}
	sub, err := w.subscriber.Subscribe(ctx, id, func(m chat.Message) {
		w.handlePush(id, gen, m)
	})
	if err != nil {
		var subErr *chat.SubscriptionError
		if !errors.As(err, &subErr) {
			err = &chat.SubscriptionError{Topic: id, Err: err}
		}
		logger.WarnCF("widget", "Realtime subscription failed", map[string]interface{}{"error": err.Error()})
		return
	}

	w.mu.Lock()
	if w.closed || w.generation != gen {
		w.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	w.sub = sub
	w.mu.Unlock()
}

// handlePush renders a pushed row at most once, and only while its session is current.
func (w *Widget) handlePush(id string, gen uint64, m chat.Message) {
	w.mu.Lock()
	if w.closed || w.generation != gen || w.phase != PhaseActive {
		w.mu.Unlock()
		return
	}
	if m.SessionID != "" && m.SessionID != id {
		w.mu.Unlock()
		return
	}
	if m.ID != "" {
		if w.seen[m.ID] {
			w.mu.Unlock()
			return
		}
		w.seen[m.ID] = true
	}
	w.mu.Unlock()

	if !ShouldRender(m) {
		logger.DebugCF("widget", "Suppressed pushed row", map[string]interface{}{"id": m.ID, "sender": string(m.Sender)})
		return
	}
	w.show(func(v View) {
		v.Append(w.botEntry(m.Sender, m.Content, chat.OriginPushed))
	})
}

// persist stores a row. Failures are logged and never reach the user.
func (w *Widget) persist(ctx context.Context, m chat.Message) {
	if w.store == nil {
		return
	}
	saved, err := w.store.InsertMessage(ctx, m)
	if err != nil {
		logger.WarnCF("widget", "Failed to persist message", map[string]interface{}{
			"session_id": m.SessionID,
			"sender":     string(m.Sender),
			"error":      err.Error(),
		})
		return
	}
	if saved != nil {
		w.markSeen(saved.ID)
	}
}

func (w *Widget) botEntry(sender chat.Sender, text string, origin chat.Origin) chat.Entry {
	return chat.Entry{
		Sender:  sender,
		Content: text,
		Origin:  origin,
		Kind:    chat.KindMessage,
		Animate: render.Animatable(text, w.cfg.UI.EnableTypingAnimation),
	}
}

// show serializes view access so typed-out messages never interleave.
func (w *Widget) show(fn func(View)) {
	w.viewMu.Lock()
	defer w.viewMu.Unlock()
	fn(w.view)
}
