package texbot

import (
	"context"
	"testing"
)

// ---------------------------------------------------------------------------
// TestParseMode - Mode names
// ---------------------------------------------------------------------------

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeInline, false},
		{"inline", ModeInline, false},
		{"tex", ModeInline, false},
		{" Displayed ", ModeDisplayed, false},
		{"display", ModeDisplayed, false},
		{"eqn", ModeDisplayed, false},
		{"block", ModeInline, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMode_String(t *testing.T) {
	t.Parallel()

	for _, m := range []Mode{ModeInline, ModeDisplayed} {
		back, err := ParseMode(m.String())
		if err != nil || back != m {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", m.String(), back, err, m)
		}
	}
	if got := Mode(9).String(); got != "mode(9)" {
		t.Errorf("unknown mode String() = %q", got)
	}
}

// ---------------------------------------------------------------------------
// TestRequest_Body - Template body
// ---------------------------------------------------------------------------

func TestRequest_Body(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"inline unchanged", Request{Markup: "$x = 7$"}, "$x = 7$"},
		{"displayed wrapped", Request{Markup: `\frac{a}{b}`, Mode: ModeDisplayed}, "$\\displaystyle\n\\frac{a}{b}\n$"},
		{"empty inline", Request{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.req.Body(); got != tt.want {
				t.Errorf("Body() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestState / TestOutcome
// ---------------------------------------------------------------------------

func TestState_String(t *testing.T) {
	t.Parallel()

	if StateCacheCheck.String() != "cache_check" {
		t.Errorf("StateCacheCheck = %q", StateCacheCheck.String())
	}
	if State(42).String() != "state(42)" {
		t.Errorf("unknown state = %q", State(42).String())
	}
}

func TestOutcome_Delivered(t *testing.T) {
	t.Parallel()

	if !(Outcome{State: StateDeliver, Image: "a.png"}).Delivered() {
		t.Error("deliver with image should be delivered")
	}
	if (Outcome{State: StateDeliver}).Delivered() {
		t.Error("deliver without image should not be delivered")
	}
	if (Outcome{State: StateReportError, Image: "a.png"}).Delivered() {
		t.Error("report_error should not be delivered")
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if RequestID(ctx) != "" {
		t.Error("empty context has a request id")
	}
	if got := RequestID(WithRequestID(ctx, "abc")); got != "abc" {
		t.Errorf("RequestID() = %q, want abc", got)
	}
}
