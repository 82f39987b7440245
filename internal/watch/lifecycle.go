package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamwatch/internal/storage"
	"streamwatch/internal/telemetry"
	"streamwatch/internal/transport"
	"streamwatch/pkg/logx"
)

// reconcile applies one debounced event to a tenant's lifecycle. The two
// allowed transitions are unannounced→announced (publish) and
// announced→unannounced (edit to offline), the latter gated by the
// offline grace period measured from the last raw live observation.
func (e *Engine) reconcile(ctx context.Context, t *storage.Tenant, st *tenantState, plat Platform, ev Event, sig RawSignal, now time.Time) error {
	log := e.log.With(
		logx.String("platform", string(t.Key.Platform)),
		logx.Int64("chat", t.Key.ChatID),
		logx.String("channel", t.ChannelRef),
	)

	switch ev {
	case EventLiveConfirmed:
		if t.Announced {
			// Already announced this stream; just refresh the cache.
			st.isLive = true
			return nil
		}
		return e.publish(ctx, t, st, plat, sig, log)

	case EventOfflineConfirmed:
		if !t.Announced {
			return nil
		}
		grace := time.Duration(t.OfflineGraceSeconds) * time.Second
		elapsed := now.Sub(t.LastSeenLive)
		if elapsed < grace {
			// Transient dip: stay announced so a recovery doesn't re-ping.
			log.Debug("offline confirmed but within grace",
				logx.Duration("elapsed", elapsed), logx.Duration("grace", grace))
			return nil
		}
		return e.closeOut(ctx, t, st, plat, sig, log)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, t *storage.Tenant, st *tenantState, plat Platform, sig RawSignal, log logx.Logger) error {
	text := plat.RenderLive(t.ChannelRef, sig)
	to := transport.ChatTarget{ChatID: t.AnnounceChatID, ThreadID: t.AnnounceThreadID}

	ref, err := e.pub.PublishLive(ctx, to, t.PingText, text)
	if err != nil {
		// Publish and flag update are one unit: on failure the tenant
		// stays unannounced so the next confirmed-live tick retries.
		telemetry.PublishErrors.Inc()
		return fmt.Errorf("publish live: %w", err)
	}

	msg := &storage.MsgRef{ChatID: ref.ChatID, MessageID: ref.MessageID}
	if err := e.store.SetAnnounced(ctx, t.Key, true, msg); err != nil {
		log.Error("announced flag not persisted; duplicate ping possible after restart", logx.Err(err))
	}
	t.Announced = true
	t.LastMsgChatID = ref.ChatID
	t.LastMsgID = ref.MessageID
	st.isLive = true

	telemetry.Publishes.Inc()
	log.Info("stream live; announcement published", logx.Int("msg_id", ref.MessageID))
	return nil
}

func (e *Engine) closeOut(ctx context.Context, t *storage.Tenant, st *tenantState, plat Platform, sig RawSignal, log logx.Logger) error {
	if t.LastMsgID != 0 {
		text := plat.RenderOffline(t.ChannelRef, sig)
		ref := transport.MessageRef{ChatID: t.LastMsgChatID, MessageID: t.LastMsgID}
		err := e.pub.UpdateToOffline(ctx, ref, text)
		switch {
		case errors.Is(err, transport.ErrMessageNotFound):
			// Message already gone; nothing left to edit.
			log.Warn("live message vanished before offline edit", logx.Int("msg_id", t.LastMsgID))
		case err != nil:
			// Keep flag and ref so a later tick can retry the edit.
			telemetry.EditErrors.Inc()
			return fmt.Errorf("offline edit: %w", err)
		}
	}

	if err := e.store.SetAnnounced(ctx, t.Key, false, nil); err != nil {
		return fmt.Errorf("clear announced flag: %w", err)
	}
	t.Announced = false
	st.isLive = false

	telemetry.OfflineEdits.Inc()
	log.Info("stream ended; announcement closed out")
	return nil
}
