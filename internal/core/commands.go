package core

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"streamwatch/internal/storage"
	"streamwatch/internal/transport"
	"streamwatch/internal/watch"
	"streamwatch/pkg/logx"
)

const cmdTimeout = 15 * time.Second

// commandLoop handles the produced chat surface. Errors become short
// human-readable replies; internal detail stays in the logs.
func (a *App) commandLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-a.updates:
			if up.Message != nil {
				a.handleCommand(ctx, *up.Message)
			}
		}
	}
}

func (a *App) handleCommand(ctx context.Context, msg transport.Message) {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	cctx, cancel := context.WithTimeout(ctx, cmdTimeout)
	defer cancel()

	var reply string
	switch cmd {
	case "/watch":
		reply = a.cmdWatch(cctx, msg, args)
	case "/watchstatus":
		reply = a.cmdWatchStatus(cctx, msg)
	case "/unwatch":
		reply = a.cmdUnwatch(cctx, msg, args)
	default:
		return
	}
	if reply == "" {
		return
	}

	to := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	if err := a.notifier.Reply(cctx, to, reply); err != nil {
		a.log.Warn("command reply failed",
			logx.String("cmd", cmd),
			logx.Int64("chat_id", msg.ChatID),
			logx.Err(err))
	}
}

func (a *App) cmdWatch(ctx context.Context, msg transport.Message, args []string) string {
	if len(args) < 2 {
		return "Usage: /watch &lt;twitch|youtube&gt; &lt;channel-or-url&gt; [stable 1-5] [poll seconds] [grace minutes]"
	}
	plat, ok := parsePlatform(args[0])
	if !ok {
		return "Unknown platform. Supported: twitch, youtube."
	}

	p := watch.SetupParams{
		Platform:        plat,
		ChatID:          msg.ChatID,
		ChannelRefOrURL: args[1],
		Announce:        transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		GraceMinutes:    -1,
	}
	var err error
	if len(args) > 2 {
		if p.StableChecks, err = strconv.Atoi(args[2]); err != nil {
			return "Stable check count must be a number."
		}
	}
	if len(args) > 3 {
		if p.PollSeconds, err = strconv.Atoi(args[3]); err != nil {
			return "Poll interval must be a number of seconds."
		}
	}
	if len(args) > 4 {
		if p.GraceMinutes, err = strconv.Atoi(args[4]); err != nil {
			return "Grace period must be a number of minutes."
		}
	}

	cfg, err := a.engine.Setup(ctx, p)
	if err != nil {
		a.log.Warn("watch setup failed",
			logx.String("platform", string(plat)),
			logx.Int64("chat_id", msg.ChatID),
			logx.Err(err))
		return "Could not set up the watch: " + html.EscapeString(err.Error())
	}
	return fmt.Sprintf(
		"Watching <b>%s</b> on %s.\nChecks every %ds, announces after %d stable check(s), offline grace %dm.",
		html.EscapeString(cfg.ChannelRef), cfg.Key.Platform,
		cfg.PollSeconds, cfg.StableThreshold, cfg.OfflineGraceSeconds/60)
}

func (a *App) cmdWatchStatus(ctx context.Context, msg transport.Message) string {
	var b strings.Builder
	for _, plat := range []storage.Platform{storage.PlatformTwitch, storage.PlatformYouTube} {
		rep, err := a.engine.Status(ctx, storage.TenantKey{Platform: plat, ChatID: msg.ChatID})
		if errors.Is(err, watch.ErrNotConfigured) {
			continue
		}
		if err != nil {
			a.log.Warn("status lookup failed", logx.String("platform", string(plat)), logx.Err(err))
			return "Could not read the watch status, try again later."
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		writeStatus(&b, rep)
	}
	if b.Len() == 0 {
		return "No channels are being watched in this chat. Use /watch to add one."
	}
	return b.String()
}

func writeStatus(b *strings.Builder, rep *watch.StatusReport) {
	t := rep.Tenant
	fmt.Fprintf(b, "<b>%s</b> / %s", t.Key.Platform, html.EscapeString(t.ChannelRef))
	if rep.IsLive {
		b.WriteString(": live")
	} else {
		b.WriteString(": offline")
	}
	fmt.Fprintf(b, "\npoll %ds, stable %d, grace %dm, announced=%v",
		t.PollSeconds, t.StableThreshold, t.OfflineGraceSeconds/60, t.Announced)
	if !t.LastCheck.IsZero() {
		fmt.Fprintf(b, "\nlast check %s", t.LastCheck.UTC().Format(time.RFC3339))
	}
	if !t.LastSeenLive.IsZero() {
		fmt.Fprintf(b, "\nlast seen live %s", t.LastSeenLive.UTC().Format(time.RFC3339))
	}
	if rep.LiveHits > 0 || rep.OfflineHits > 0 {
		fmt.Fprintf(b, "\nhit counters: live %d, offline %d", rep.LiveHits, rep.OfflineHits)
	}
}

func (a *App) cmdUnwatch(ctx context.Context, msg transport.Message, args []string) string {
	if len(args) < 1 {
		return "Usage: /unwatch &lt;twitch|youtube&gt;"
	}
	plat, ok := parsePlatform(args[0])
	if !ok {
		return "Unknown platform. Supported: twitch, youtube."
	}

	err := a.engine.Disable(ctx, storage.TenantKey{Platform: plat, ChatID: msg.ChatID})
	if errors.Is(err, watch.ErrNotConfigured) {
		return fmt.Sprintf("No %s watch is configured in this chat.", plat)
	}
	if err != nil {
		a.log.Warn("unwatch failed", logx.String("platform", string(plat)), logx.Err(err))
		return "Could not remove the watch, try again later."
	}
	return fmt.Sprintf("Stopped watching %s in this chat.", plat)
}

func parsePlatform(s string) (storage.Platform, bool) {
	switch strings.ToLower(s) {
	case "twitch":
		return storage.PlatformTwitch, true
	case "youtube", "yt":
		return storage.PlatformYouTube, true
	}
	return "", false
}
