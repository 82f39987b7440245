// Package twitch watches Twitch channels through their public channel
// page. No Helix credentials are involved: liveness is read from the
// page's embedded JSON-LD/state blobs, which makes the signal noisy and
// is exactly why the engine debounces it.
package twitch

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
	pollMinSeconds     = 30
	pollMaxSeconds     = 600
	pollDefaultSeconds = 90
	graceDefaultSecs   = 300

	maxBodyBytes = 4 << 20
)

var (
	liveTrueRe  = regexp.MustCompile(`(?i)"(?:isLiveBroadcast|isLive)"\s*:\s*true`)
	liveFalseRe = regexp.MustCompile(`(?i)"(?:isLiveBroadcast|isLive)"\s*:\s*false`)
	avatarRe    = regexp.MustCompile(`(?i)"profileImageURL"\s*:\s*"([^"]+)"`)
	titleRe     = regexp.MustCompile(`(?i)"title"\s*:\s*"([^"]+)"`)
	gameRe      = regexp.MustCompile(`(?i)"gameName"\s*:\s*"([^"]+)"`)

	refCharsRe = regexp.MustCompile(`[^a-zA-Z0-9_]`)
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

func (a *Adapter) Name() storage.Platform { return storage.PlatformTwitch }

func (a *Adapter) PollBounds() (min, max, def int) {
	return pollMinSeconds, pollMaxSeconds, pollDefaultSeconds
}

func (a *Adapter) DefaultGraceSeconds() int { return graceDefaultSecs }

// Normalize accepts a channel name or any common twitch.tv URL shape and
// reduces it to the bare lower-case login ([a-z0-9_]).
func (a *Adapter) Normalize(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	v = strings.TrimPrefix(v, "www.")
	if strings.HasPrefix(strings.ToLower(v), "twitch.tv/") {
		v = v[len("twitch.tv/"):]
	}
	v = strings.Trim(v, "/")
	v = strings.TrimPrefix(v, "@")
	if i := strings.IndexByte(v, '/'); i >= 0 {
		v = v[:i]
	}
	v = refCharsRe.ReplaceAllString(v, "")
	v = strings.ToLower(v)
	if v == "" {
		return "", fmt.Errorf("no usable twitch channel in %q", raw)
	}
	return v, nil
}

func (a *Adapter) ChannelURL(channelRef string) string {
	return "https://www.twitch.tv/" + channelRef
}

func (a *Adapter) Fetch(ctx context.Context, channelRef string) (watch.RawSignal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.ChannelURL(channelRef), nil)
	if err != nil {
		return watch.RawSignal{}, err
	}
	// Browser-ish headers; the page serves a reduced shell to bare clients.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.google.com/")

	resp, err := a.http.Do(req)
	if err != nil {
		return watch.RawSignal{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return watch.RawSignal{}, fmt.Errorf("twitch page: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return watch.RawSignal{}, err
	}
	return parsePage(string(body)), nil
}

// parsePage extracts the live flag and metadata. An explicit false wins
// over a later true match; anything ambiguous resolves to not-live, never
// to an error.
func parsePage(page string) watch.RawSignal {
	var sig watch.RawSignal
	switch {
	case liveFalseRe.MatchString(page):
		sig.Live = false
	case liveTrueRe.MatchString(page):
		sig.Live = true
	}
	if m := avatarRe.FindStringSubmatch(page); m != nil {
		sig.AvatarURL = strings.ReplaceAll(m[1], `\/`, "/")
	}
	if m := titleRe.FindStringSubmatch(page); m != nil {
		sig.Title = html.UnescapeString(m[1])
	}
	if m := gameRe.FindStringSubmatch(page); m != nil {
		sig.Category = html.UnescapeString(m[1])
	}
	return sig
}

func (a *Adapter) RenderLive(channelRef string, sig watch.RawSignal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔴 <b>%s</b> is now LIVE on Twitch!\n", html.EscapeString(strings.ToUpper(channelRef)))
	fmt.Fprintf(&b, "▶️ %s\n", a.ChannelURL(channelRef))
	if sig.Title != "" {
		fmt.Fprintf(&b, "\n<b>Title:</b> %s", html.EscapeString(sig.Title))
	}
	if sig.Category != "" {
		fmt.Fprintf(&b, "\n<b>Playing:</b> %s", html.EscapeString(sig.Category))
	}
	return b.String()
}

func (a *Adapter) RenderOffline(channelRef string, sig watch.RawSignal) string {
	return fmt.Sprintf("⚫ <b>%s</b> is now offline.\nThe stream has ended, thanks for watching!",
		html.EscapeString(strings.ToUpper(channelRef)))
}
