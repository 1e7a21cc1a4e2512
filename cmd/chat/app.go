package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"chat-widget/internal/chat"
	"chat-widget/internal/config"
	"chat-widget/internal/dispatch"
	"chat-widget/internal/logger"
	"chat-widget/internal/realtime"
	"chat-widget/internal/render"
	"chat-widget/internal/session"
	"chat-widget/internal/store"
	"chat-widget/internal/widget"
)

// app is everything a command needs, wired from the flags.
type app struct {
	botID    string
	cfg      *config.Config
	backend  config.Backend
	store    *store.Client
	storage  session.Storage
	sessions *session.Manager
	closers  []io.Closer
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logger.DebugCF("cli", "Close failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func resolveBotID() (string, error) {
	if botID != "" {
		return botID, nil
	}
	if scriptURL != "" {
		return config.BotIDFromURL(scriptURL)
	}
	return "", &chat.ConfigError{Err: config.ErrNoBotID}
}

// loadBase wires the bot identity, backend and session storage. Commands
// that never talk to the webhook stop here.
func loadBase() (*app, error) {
	id, err := resolveBotID()
	if err != nil {
		return nil, err
	}
	backend, err := config.LoadBackend(envFile)
	if err != nil {
		return nil, err
	}
	a := &app{botID: id, backend: backend}
	if backend.Enabled() {
		a.store = store.New(backend)
	} else {
		logger.DebugCF("cli", "No backend configured; history and pushes are off", nil)
	}

	storage, closer, err := openStorage(storageKind, storagePath)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.storage = storage
	a.sessions = session.NewManager(storage, true)
	return a, nil
}

// loadApp adds the resolved bot configuration to loadBase.
func loadApp(ctx context.Context) (*app, error) {
	a, err := loadBase()
	if err != nil {
		return nil, err
	}

	var src config.Source
	if remote {
		if a.store == nil {
			a.Close()
			return nil, fmt.Errorf("--remote needs SUPABASE_URL")
		}
		src = remoteSource{Remote: config.Remote{BotID: a.botID, Fetcher: a.store}, webhook: webhookURL}
	} else {
		overrides := map[string]interface{}{}
		if configPath != "" {
			if overrides, err = config.LoadOverrides(configPath); err != nil {
				a.Close()
				return nil, &chat.ConfigError{BotID: a.botID, Err: err}
			}
		}
		if webhookURL != "" {
			overrides = withWebhook(overrides, webhookURL)
		}
		src = config.Static{BotID: a.botID, Overrides: overrides}
	}

	if a.cfg, err = config.Resolve(ctx, src); err != nil {
		a.Close()
		return nil, err
	}
	a.sessions = session.NewManager(a.storage, a.cfg.Behavior.RememberConversation)
	return a, nil
}

// remoteSource lets --webhook win over the stored record.
type remoteSource struct {
	config.Remote
	webhook string
}

func (r remoteSource) Load(ctx context.Context) (*config.Config, error) {
	cfg, err := r.Remote.Load(ctx)
	if err != nil {
		return nil, err
	}
	if r.webhook != "" {
		cfg.Webhook.URL = r.webhook
	}
	return cfg, nil
}

func withWebhook(overrides map[string]interface{}, url string) map[string]interface{} {
	if overrides == nil {
		overrides = map[string]interface{}{}
	}
	hook, ok := overrides["webhook"].(map[string]interface{})
	if !ok {
		hook = map[string]interface{}{}
	}
	hook["url"] = url
	overrides["webhook"] = hook
	return overrides
}

func defaultStorageDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat-widget")
}

func openStorage(kind, path string) (session.Storage, io.Closer, error) {
	switch kind {
	case "memory":
		return session.NewMemoryStorage(), nil, nil
	case "file", "":
		if path == "" {
			path = filepath.Join(defaultStorageDir(), "sessions.json")
		}
		return session.NewFileStorage(path), nil, nil
	case "sqlite":
		if path == "" {
			path = filepath.Join(defaultStorageDir(), "sessions.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, err
		}
		s, err := session.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q (want file, sqlite or memory)", kind)
	}
}

// newWidget builds a widget drawing on view. Without a backend it keeps no
// history and receives no pushes.
func (a *app) newWidget(view widget.View, pacing widget.Pacing) (*widget.Widget, error) {
	opts := widget.Options{
		Config:   a.cfg,
		Sessions: a.sessions,
		View:     view,
		Pacing:   pacing,
	}
	var quota dispatch.QuotaChecker
	if a.store != nil {
		quota = a.store
		opts.Store = a.store
		url, err := a.store.RealtimeURL()
		if err != nil {
			return nil, err
		}
		opts.Subscriber = widget.FromRealtime(realtime.NewSubscriber(url))
	}
	opts.Dispatcher = dispatch.New(dispatch.OptionsFromConfig(a.cfg, quota))
	return widget.New(opts)
}

func (a *app) terminal(out io.Writer) *render.Terminal {
	return render.NewTerminal(out, a.cfg)
}
