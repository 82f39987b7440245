package youtube

import (
	"testing"

	"streamwatch/pkg/logx"
)

func TestNormalize(t *testing.T) {
	a := New(logx.Nop())
	cases := []struct {
		in   string
		want string
	}{
		{"@somehandle", "@somehandle"},
		{"https://www.youtube.com/@somehandle", "@somehandle"},
		{"youtube.com/@somehandle/streams", "@somehandle"},
		{"UCabc123", "UCabc123"},
		{"https://youtube.com/channel/UCabc123", "UCabc123"},
		{"youtube.com/c/SomeName", "SomeName"},
		{"youtube.com/user/SomeName/", "SomeName"},
	}
	for _, tc := range cases {
		got, err := a.Normalize(tc.in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"", "   ", "@", "https://www.youtube.com/"} {
		if _, err := a.Normalize(in); err == nil {
			t.Fatalf("Normalize(%q): expected error", in)
		}
	}
}

func TestChannelURLShape(t *testing.T) {
	a := New(logx.Nop())
	if got := a.ChannelURL("@somehandle"); got != "https://www.youtube.com/@somehandle/live" {
		t.Fatalf("handle URL = %q", got)
	}
	if got := a.ChannelURL("UCabc123"); got != "https://www.youtube.com/channel/UCabc123/live" {
		t.Fatalf("channel-id URL = %q", got)
	}
}

func TestParsePage(t *testing.T) {
	page := `<meta name="title" content="Launch day &amp; Q/A">` +
		`{"avatar":{"thumbnails":[{"url":"https:\/\/yt.example\/a.png"}]}` +
		`,"isLive":true}`
	sig := parsePage(page)
	if !sig.Live {
		t.Fatal("isLive:true not detected")
	}
	if sig.Title != "Launch day & Q/A" {
		t.Fatalf("title = %q", sig.Title)
	}
	if sig.AvatarURL != "https://yt.example/a.png" {
		t.Fatalf("avatar = %q", sig.AvatarURL)
	}

	if sig := parsePage(`<html>scheduled stream</html>`); sig.Live {
		t.Fatal("page without the marker counted as live")
	}
}
