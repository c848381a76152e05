package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kinokod-bot/internal/bot"
	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/config"
	"kinokod-bot/internal/discovery"
	"kinokod-bot/internal/genre"
	"kinokod-bot/internal/kv"
	"kinokod-bot/internal/logger"
	"kinokod-bot/internal/storage"
	"kinokod-bot/internal/tg"
	"kinokod-bot/internal/views"
	"kinokod-bot/internal/wizard"
)

const kvCollection = "kv"

// app is the wired bot with everything it needs to shut down.
type app struct {
	cfg   *config.Config
	log   *logrus.Entry
	store catalog.Store
	kv    kv.Store
	api   *tg.Client
	bot   *bot.Bot
	mongo *mongo.Client
}

func newApp(ctx context.Context, cfg *config.Config, hc *http.Client) (*app, error) {
	a := &app{cfg: cfg, log: logger.WithModule("app")}

	store, err := storage.Open(ctx, cfg.Storage(), logger.WithModule("storage"))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	a.store = store

	kvStore, err := a.openKV(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	a.kv = kvStore

	engine := discovery.New(store,
		discovery.WithCache(a.kv, cfg.TopCacheTTL),
		discovery.WithLogger(logger.WithModule("discovery")),
	)
	lang := genre.ParseLang(cfg.Language)
	machine := wizard.New(store, wizard.NewSessionStore(a.kv, cfg.WizardSessionTTL),
		wizard.WithLanguage(lang),
		wizard.WithLogger(logger.WithModule("wizard")),
		wizard.OnCommit(engine.Invalidate),
	)

	opts := []tg.Option{tg.WithRate(cfg.TelegramRPS)}
	if hc != nil {
		opts = append(opts, tg.WithHTTPClient(hc))
	}
	a.api = tg.NewClient(cfg.BotToken, opts...)
	a.bot = bot.New(a.api, bot.Deps{
		Store:   store,
		Engine:  engine,
		Views:   views.NewTracker(a.kv, store, cfg.ViewDedupWindow, logger.WithModule("views")),
		Wizard:  machine,
		State:   a.kv,
		IsAdmin: cfg.IsAdmin,
		Lang:    lang,
		Log:     logger.WithModule("bot"),
	})
	return a, nil
}

func (a *app) openKV(ctx context.Context) (kv.Store, error) {
	if a.cfg.KVBackend != "mongo" {
		b, err := kv.OpenBadger(a.cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	// share the catalog connection when it is Mongo too
	if m, ok := a.store.(*storage.Mongo); ok {
		return newMongoKV(ctx, m.Database().Collection(kvCollection))
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	a.mongo = client
	return newMongoKV(ctx, client.Database(a.cfg.MongoDatabase).Collection(kvCollection))
}

func newMongoKV(ctx context.Context, col *mongo.Collection) (kv.Store, error) {
	m, err := kv.NewMongo(ctx, col)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (a *app) Close(ctx context.Context) {
	var errs []error
	if a.kv != nil {
		errs = append(errs, a.kv.Close())
	}
	if a.mongo != nil {
		errs = append(errs, a.mongo.Disconnect(ctx))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.log.WithError(err).Warn("shutdown")
	}
}
