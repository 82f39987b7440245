// Package youtube watches YouTube channels through their public /live
// page. Handle-style refs (@name) and raw channel IDs (UC...) map to
// different URL shapes; both carry an "isLive" marker when a broadcast is
// running.
package youtube

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"streamwatch/internal/storage"
	"streamwatch/internal/watch"
	"streamwatch/pkg/logx"
)

const (
	pollMinSeconds     = 60
	pollMaxSeconds     = 1200
	pollDefaultSeconds = 300
	graceDefaultSecs   = 600

	maxBodyBytes = 4 << 20
)

var (
	titleRe  = regexp.MustCompile(`<meta name="title" content="([^"]+)">`)
	avatarRe = regexp.MustCompile(`"avatar":\{"thumbnails":\[\{"url":"([^"]+)"`)
)

type Adapter struct {
	http *http.Client
	log  logx.Logger
}

func New(log logx.Logger) *Adapter {
	return &Adapter{
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log,
	}
}

func (a *Adapter) Name() storage.Platform { return storage.PlatformYouTube }

func (a *Adapter) PollBounds() (min, max, def int) {
	return pollMinSeconds, pollMaxSeconds, pollDefaultSeconds
}

func (a *Adapter) DefaultGraceSeconds() int { return graceDefaultSecs }

// Normalize accepts a handle (@name), a channel ID, or a youtube.com URL
// and reduces it to either the @handle or the bare channel ID. The
// leading @ is preserved; it selects the URL shape for fetching.
func (a *Adapter) Normalize(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	v = strings.TrimPrefix(v, "www.")
	v = strings.TrimPrefix(v, "youtube.com/")
	for _, p := range []string{"c/", "channel/", "user/"} {
		v = strings.TrimPrefix(v, p)
	}
	v = strings.Trim(v, "/")
	if i := strings.IndexByte(v, '/'); i >= 0 {
		v = v[:i]
	}
	if v == "" || v == "@" {
		return "", fmt.Errorf("no usable youtube channel in %q", raw)
	}
	return v, nil
}

func (a *Adapter) ChannelURL(channelRef string) string {
	if strings.HasPrefix(channelRef, "@") {
		return "https://www.youtube.com/" + channelRef + "/live"
	}
	return "https://www.youtube.com/channel/" + channelRef + "/live"
}

func (a *Adapter) Fetch(ctx context.Context, channelRef string) (watch.RawSignal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.ChannelURL(channelRef), nil)
	if err != nil {
		return watch.RawSignal{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := a.http.Do(req)
	if err != nil {
		return watch.RawSignal{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return watch.RawSignal{}, fmt.Errorf("youtube page: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return watch.RawSignal{}, err
	}
	return parsePage(string(body)), nil
}

// parsePage reads the live marker and metadata. A page without the
// explicit marker counts as not-live.
func parsePage(page string) watch.RawSignal {
	var sig watch.RawSignal
	if strings.Contains(page, `"isLive":true`) {
		sig.Live = true
	}
	if m := titleRe.FindStringSubmatch(page); m != nil {
		sig.Title = html.UnescapeString(m[1])
	}
	if m := avatarRe.FindStringSubmatch(page); m != nil {
		sig.AvatarURL = strings.ReplaceAll(m[1], `\/`, "/")
	}
	return sig
}

func (a *Adapter) RenderLive(channelRef string, sig watch.RawSignal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔴 <b>%s</b> is now LIVE on YouTube!\n", html.EscapeString(channelRef))
	fmt.Fprintf(&b, "▶️ %s\n", a.ChannelURL(channelRef))
	if sig.Title != "" {
		fmt.Fprintf(&b, "\n<b>Title:</b> %s", html.EscapeString(sig.Title))
	}
	return b.String()
}

func (a *Adapter) RenderOffline(channelRef string, sig watch.RawSignal) string {
	return fmt.Sprintf("⚫ <b>%s</b> is now offline.\nThe YouTube stream has ended.",
		html.EscapeString(channelRef))
}
