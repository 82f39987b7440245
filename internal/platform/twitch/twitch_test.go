package twitch

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
		{"somechan", "somechan"},
		{"SomeChan", "somechan"},
		{"@somechan", "somechan"},
		{"https://www.twitch.tv/somechan", "somechan"},
		{"http://twitch.tv/somechan/", "somechan"},
		{"twitch.tv/somechan/videos", "somechan"},
		{"  twitch.tv/Some_Chan123  ", "some_chan123"},
		{"twitch.tv/some-chan!", "somechan"},
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

	for _, in := range []string{"", "   ", "https://www.twitch.tv/", "!!!"} {
		if _, err := a.Normalize(in); err == nil {
			t.Fatalf("Normalize(%q): expected error", in)
		}
	}
}

func TestParsePageLiveMarkers(t *testing.T) {
	if sig := parsePage(`{"isLiveBroadcast":true}`); !sig.Live {
		t.Fatal("isLiveBroadcast:true not detected")
	}
	if sig := parsePage(`{"isLive" : true}`); !sig.Live {
		t.Fatal("spaced isLive:true not detected")
	}
	if sig := parsePage(`{"some":"page"}`); sig.Live {
		t.Fatal("page without marker counted as live")
	}
	// An explicit false anywhere wins over a true elsewhere in the blob.
	if sig := parsePage(`{"isLive":false,"isLiveBroadcast":true}`); sig.Live {
		t.Fatal("explicit false did not win")
	}
}

func TestParsePageMetadata(t *testing.T) {
	page := `{"profileImageURL":"https:\/\/cdn.example\/p.png","title":"Road to 100 &amp; beyond","gameName":"Just Chatting","isLive":true}`
	sig := parsePage(page)
	if sig.AvatarURL != "https://cdn.example/p.png" {
		t.Fatalf("avatar = %q", sig.AvatarURL)
	}
	if sig.Title != "Road to 100 & beyond" {
		t.Fatalf("title = %q, want entities unescaped", sig.Title)
	}
	if sig.Category != "Just Chatting" {
		t.Fatalf("category = %q", sig.Category)
	}
}

func TestPollBounds(t *testing.T) {
	a := New(logx.Nop())
	min, max, def := a.PollBounds()
	if min != 30 || max != 600 || def != 90 {
		t.Fatalf("bounds = (%d, %d, %d)", min, max, def)
	}
	if a.DefaultGraceSeconds() != 300 {
		t.Fatalf("grace = %d", a.DefaultGraceSeconds())
	}
}
