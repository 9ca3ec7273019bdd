package sqlinline

import (
	"strings"
	"testing"
)

// Terminal rows are write-once: every statement that writes a terminal status
// must refuse to touch a row that already reached one.
func TestTerminalWritesGuardFinishedRows(t *testing.T) {
	for name, q := range map[string]string{
		"QCompleteStory": QCompleteStory,
		"QFailStory":     QFailStory,
	} {
		if !strings.Contains(q, "status not in ('completed', 'error')") {
			t.Fatalf("%s lacks the terminal status guard", name)
		}
	}
}

func TestClaimOnlyTakesPendingRows(t *testing.T) {
	if !strings.Contains(QWorkerClaimStory, "status = 'pending'") {
		t.Fatalf("claim query must only select pending rows")
	}
	if !strings.Contains(QWorkerClaimStory, "for update skip locked") {
		t.Fatalf("claim query must lock claimed rows")
	}
}
