package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	logx "stockwatch/pkg/logx"
)

type sentMessage struct {
	kind     string // "text" or "photo"
	body     string
	imageURL string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeNotifier) SendText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{kind: "text", body: text})
	return nil
}

func (f *fakeNotifier) SendPhoto(_ context.Context, caption, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{kind: "photo", body: caption, imageURL: imageURL})
	return nil
}

func (f *fakeNotifier) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func TestDispatchNewWithImage(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{}
	d := NewDispatcher(n, logx.Nop())

	s := snap("A1", "M", "L")
	s.Name = "Oversized Tee"
	s.Price = 999
	s.ImageURL = "https://cdn.example/a1.jpg"

	if err := d.Dispatch(context.Background(), Event{Kind: KindNew, Snapshot: s}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	msgs := n.messages()
	if len(msgs) != 1 || msgs[0].kind != "photo" {
		t.Fatalf("expected one photo message, got %+v", msgs)
	}
	if msgs[0].imageURL != s.ImageURL {
		t.Fatalf("imageURL = %q", msgs[0].imageURL)
	}
	for _, want := range []string{"NEW", "Oversized Tee", "₹999", "M, L", s.Link} {
		if !strings.Contains(msgs[0].body, want) {
			t.Fatalf("caption missing %q:\n%s", want, msgs[0].body)
		}
	}
}

func TestDispatchNewWithoutImageFallsBackToText(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{}
	d := NewDispatcher(n, logx.Nop())

	if err := d.Dispatch(context.Background(), Event{Kind: KindNew, Snapshot: snap("A1", "M")}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	msgs := n.messages()
	if len(msgs) != 1 || msgs[0].kind != "text" {
		t.Fatalf("expected one text message, got %+v", msgs)
	}
}

func TestDispatchNewEmptySizesUsesFallbackToken(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{}
	d := NewDispatcher(n, logx.Nop())

	if err := d.Dispatch(context.Background(), Event{Kind: KindNew, Snapshot: snap("A1")}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := n.messages()[0].body; !strings.Contains(got, noSizesFallback) {
		t.Fatalf("message missing fallback token:\n%s", got)
	}
}

func TestDispatchSoldOutAndRestockAreTextOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind   EventKind
		marker string
	}{
		{KindSoldOut, "SOLD OUT"},
		{KindRestock, "RESTOCK"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			n := &fakeNotifier{}
			d := NewDispatcher(n, logx.Nop())

			s := snap("A1", "M")
			s.ImageURL = "https://cdn.example/a1.jpg" // must be ignored
			ev := Event{Kind: tt.kind, Snapshot: s, Sizes: []string{"L", "XL"}}
			if err := d.Dispatch(context.Background(), ev); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			msgs := n.messages()
			if len(msgs) != 1 || msgs[0].kind != "text" {
				t.Fatalf("expected one text message, got %+v", msgs)
			}
			if !strings.Contains(msgs[0].body, tt.marker) {
				t.Fatalf("message missing marker %q:\n%s", tt.marker, msgs[0].body)
			}
			if !strings.Contains(msgs[0].body, "L, XL") {
				t.Fatalf("message missing sizes:\n%s", msgs[0].body)
			}
		})
	}
}

func TestDispatchEscapesHTML(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{}
	d := NewDispatcher(n, logx.Nop())

	s := snap("A1", "M")
	s.Name = "Tee <limited> & rare"
	if err := d.Dispatch(context.Background(), Event{Kind: KindNew, Snapshot: s}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	body := n.messages()[0].body
	if strings.Contains(body, "<limited>") {
		t.Fatalf("name was not escaped:\n%s", body)
	}
	if !strings.Contains(body, "&lt;limited&gt; &amp; rare") {
		t.Fatalf("escaped name missing:\n%s", body)
	}
}

func TestDispatchError(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{err: errors.New("telegram down")}
	d := NewDispatcher(n, logx.Nop())

	err := d.Dispatch(context.Background(), Event{Kind: KindRestock, Snapshot: snap("A1", "M"), Sizes: []string{"M"}})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short unchanged", in: "hello", n: 10, want: "hello"},
		{name: "exact unchanged", in: "hello", n: 5, want: "hello"},
		{name: "truncated", in: "hello", n: 3, want: "he…"},
		{name: "zero", in: "hello", n: 0, want: ""},
		{name: "multibyte", in: "héllo wörld", n: 6, want: "héllo…"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := truncRunes(tt.in, tt.n)
			if got != tt.want {
				t.Fatalf("truncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if utf8.RuneCountInString(got) > tt.n && tt.n > 0 {
				t.Fatalf("result exceeds %d runes: %q", tt.n, got)
			}
		})
	}
}

func TestDispatchTruncatesLongCaption(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{}
	d := NewDispatcher(n, logx.Nop())

	s := snap("A1", "M")
	s.Name = strings.Repeat("x", 3*captionMaxRunes)
	s.ImageURL = "https://cdn.example/a1.jpg"
	if err := d.Dispatch(context.Background(), Event{Kind: KindNew, Snapshot: s}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := utf8.RuneCountInString(n.messages()[0].body); got > captionMaxRunes {
		t.Fatalf("caption is %d runes, cap %d", got, captionMaxRunes)
	}
}

func TestFormatPrice(t *testing.T) {
	t.Parallel()

	if got := formatPrice(999); got != "999" {
		t.Fatalf("formatPrice(999) = %q", got)
	}
	if got := formatPrice(999.5); got != "999.50" {
		t.Fatalf("formatPrice(999.5) = %q", got)
	}
}

func TestRenderDigestDeltas(t *testing.T) {
	t.Parallel()

	prev := Status{CyclesRun: 10, AlertsNew: 2, AlertsRestock: 1, AlertsSoldOut: 1, DispatchErrors: 1}
	now := Status{CyclesRun: 40, CyclesFailed: 3, ProductsTracked: 120, AlertsNew: 7, AlertsRestock: 4, AlertsSoldOut: 2, DispatchErrors: 1}

	msg := renderDigest(prev, now)
	for _, want := range []string{"120 products", "30 cycles", "3 failed", "9 alerts", "0 dispatch errors"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("digest missing %q:\n%s", want, msg)
		}
	}
}
