package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/GetStream/teamchat/chat"
	"github.com/GetStream/teamchat/config"
)

// tail follows one conversation in the terminal. Lines typed on stdin are
// posted to it.
func tail(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tail", flag.ContinueOnError)
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	userID := fs.String("user", "", "acting user id")
	email := fs.String("email", "", "acting user e-mail")
	workspace := fs.String("workspace", chat.DefaultWorkspaceName, "workspace of -channel")
	channel := fs.String("channel", chat.GeneralChannelName, "channel name to follow")
	dm := fs.String("dm", "", "follow the direct messages with this user id instead of a channel")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("-user is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Log)

	c, err := newCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.accounts.SignIn(ctx, chat.AuthIdentity{UserID: *userID, Email: *email}); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	ref := chat.DirectRef(*dm)
	if *dm == "" {
		ws, err := c.store.FindWorkspace(ctx, *workspace)
		if err != nil {
			return fmt.Errorf("find workspace %q: %w", *workspace, err)
		}
		ch, err := c.store.FindChannel(ctx, ws.ID, chat.NormalizeChannelName(*channel))
		if err != nil {
			return fmt.Errorf("find channel %q: %w", *channel, err)
		}
		ref = chat.ChannelRef(ch.ID)
	}

	sess := chat.NewSession(*userID, c.demo)
	defer sess.Reset()
	loop := &chat.SyncLoop{
		Logger:        logger,
		Conversations: c.conversations,
		Interval:      cfg.Sync.Interval,
		Limit:         cfg.Sync.MessageLimit,
	}

	p := &printer{w: os.Stdout, seen: make(map[string]bool)}
	v, err := loop.Select(ctx, sess, ref)
	if err != nil {
		logger.Warn("Initial read failed", "error", err.Error())
	}
	p.print(v)

	go readInput(ctx, os.Stdin, loop, sess, p, logger.Warn)

	err = loop.Run(ctx, sess, 0, p.print)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func readInput(ctx context.Context, r io.Reader, loop *chat.SyncLoop, sess *chat.Session, p *printer, warn func(string, ...any)) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		_, v, err := loop.Send(ctx, sess, sc.Text())
		if chat.IsValidation(err) {
			continue
		}
		if err != nil {
			warn("Send failed", "error", err.Error())
			continue
		}
		p.print(v)
	}
}

// printer writes each message once.
type printer struct {
	mu   sync.Mutex
	w    io.Writer
	seen map[string]bool
}

func (p *printer) print(v chat.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range v.Messages {
		if p.seen[m.ID] {
			continue
		}
		p.seen[m.ID] = true
		fmt.Fprintf(p.w, "%s  %s: %s\n", m.CreatedAt.Local().Format(time.Kitchen), m.Author.Name(), m.Content)
	}
}
