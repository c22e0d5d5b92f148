package workflow

import (
	"testing"
	"time"
)

func TestSyntheticTicketIdFormats(t *testing.T) {
	at := time.Date(2026, 3, 7, 15, 30, 0, 0, time.UTC)

	if got := SyntheticTicketId(42, false, at); got != "TK-42-20260307" {
		t.Fatalf("expected TK-42-20260307, got %s", got)
	}
	if got := SyntheticTicketId(42, true, at); got != "TK-ESC-42-20260307" {
		t.Fatalf("expected TK-ESC-42-20260307, got %s", got)
	}
}

func TestSyntheticTicketIdZeroPadsDate(t *testing.T) {
	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := SyntheticTicketId(7, false, at); got != "TK-7-20260102" {
		t.Fatalf("expected TK-7-20260102, got %s", got)
	}
}

func TestWhatsappDeadlineBounds(t *testing.T) {
	// The allowed window is a closed interval in hours.
	for _, h := range []int{24, 36, 48} {
		if h < whatsappDeadlineMinHours || h > whatsappDeadlineMaxHours {
			t.Fatalf("expected %dh inside the whatsapp window", h)
		}
	}
	for _, h := range []int{0, 23, 49, 72} {
		if h >= whatsappDeadlineMinHours && h <= whatsappDeadlineMaxHours {
			t.Fatalf("expected %dh outside the whatsapp window", h)
		}
	}
	if ticketDeadlineHours != 72 {
		t.Fatalf("expected 72h ticket deadline, got %d", ticketDeadlineHours)
	}
}
