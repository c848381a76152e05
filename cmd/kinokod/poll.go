package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kinokod-bot/internal/tg"
)

const (
	pollTimeout = 30 * time.Second
	pollBackoff = 2 * time.Second

	updateTimeout = 9 * time.Second
)

func newPollCommand(ctx *commandContext) *cobra.Command {
	var keepPending bool
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Fetch updates with long polling instead of a webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd.Context(), ctx, !keepPending)
		},
	}
	cmd.Flags().BoolVar(&keepPending, "keep-pending", false, "Process updates queued while the bot was offline")
	return cmd
}

func runPoll(parent context.Context, cmdCtx *commandContext, dropPending bool) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The long poll holds the request open for pollTimeout.
	a, err := newApp(ctx, cfg, &http.Client{Timeout: pollTimeout + 15*time.Second})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.api.DeleteWebhook(ctx, dropPending); err != nil {
		return err
	}
	a.log.WithField("workers", cfg.PollWorkers).Info("polling started")

	// One queue per worker; a user's updates always land on the same one, so
	// they are handled in order.
	queues := make([]chan tg.Update, cfg.PollWorkers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range queues {
		q := make(chan tg.Update, 16)
		queues[i] = q
		g.Go(func() error {
			for upd := range q {
				uctx, cancel := context.WithTimeout(gctx, updateTimeout)
				// errors are logged by the bot
				_ = a.bot.HandleUpdate(uctx, upd)
				cancel()
			}
			return nil
		})
	}
	updates := make(chan tg.Update)
	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for upd := range updates {
			select {
			case queues[shard(upd, len(queues))] <- upd:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		defer close(updates)
		return fetch(gctx, a.api, updates, a.log.Warn)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("polling stopped")
	return nil
}

// shard picks the worker queue for upd by its sender.
func shard(upd tg.Update, n int) int {
	id := upd.SenderID()
	if id < 0 {
		id = -id
	}
	return int(id % int64(n))
}

// fetch long-polls Telegram and feeds updates to out until ctx ends.
func fetch(ctx context.Context, api *tg.Client, out chan<- tg.Update, warn func(args ...any)) error {
	offset := 0
	for {
		batch, err := api.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			warn("polling error: ", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollBackoff):
			}
			continue
		}
		for _, upd := range batch {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			select {
			case out <- upd:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
