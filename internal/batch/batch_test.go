package batch

import (
	"context"
	"strings"
	"testing"

	"github.com/opensource-media/magpie/internal/detector"
	"github.com/opensource-media/magpie/internal/domain"
)

func newProcessor(opts ...Option) *Processor {
	return NewProcessor(detector.New(nil, nil, nil), opts...)
}

func TestProcessSkipsBlanks(t *testing.T) {
	p := newProcessor()

	texts := []string{
		"",
		"The city council approved a new transportation plan.",
		"   ",
		"\t\n",
	}

	items, summary, err := p.Process(context.Background(), "tenant-001", texts)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected 1 item after blank filtering, got %d", len(items))
	}
	if summary.Total != 1 {
		t.Errorf("expected summary total 1, got %d", summary.Total)
	}
	if summary.RealCount != 1 || summary.FakeCount != 0 {
		t.Errorf("expected 1 real / 0 fake, got %d / %d", summary.RealCount, summary.FakeCount)
	}
}

func TestProcessOrderPreserved(t *testing.T) {
	p := newProcessor(WithConcurrency(4))

	texts := []string{
		"You won't BELIEVE what celebrities are hiding from you!!! Number 7 will shock you!!!",
		"The city council approved a new transportation plan.",
		"A peer-reviewed study published in Nature found new evidence for climate change.",
		"SHOCKING!!! Doctors hate this one weird trick that cures everything!!!",
	}

	items, summary, err := p.Process(context.Background(), "tenant-001", texts)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}

	wantLabels := []string{domain.LabelFake, domain.LabelReal, domain.LabelReal, domain.LabelFake}
	for i, item := range items {
		if item.Index != i {
			t.Errorf("item %d: expected index %d, got %d", i, i, item.Index)
		}
		if item.Verdict.Label != wantLabels[i] {
			t.Errorf("item %d: expected label %s, got %s", i, wantLabels[i], item.Verdict.Label)
		}
		if !strings.HasPrefix(texts[i], item.TextPreview[:10]) {
			t.Errorf("item %d: preview does not match input order", i)
		}
	}

	if summary.Total != 4 || summary.FakeCount != 2 || summary.RealCount != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestProcessEmptyBatch(t *testing.T) {
	p := newProcessor()

	items, summary, err := p.Process(context.Background(), "tenant-001", nil)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
	if summary.Total != 0 {
		t.Errorf("expected total 0, got %d", summary.Total)
	}
}

func TestProcessTextPreviewTruncated(t *testing.T) {
	p := newProcessor()

	long := strings.Repeat("a very long sensational sentence ", 20)
	items, _, err := p.Process(context.Background(), "tenant-001", []string{long})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if got := len([]rune(items[0].TextPreview)); got != 100 {
		t.Errorf("expected 100-rune preview, got %d", got)
	}
}

func TestProcessCancellation(t *testing.T) {
	p := newProcessor(WithConcurrency(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = "Some ordinary headline about local politics today."
	}

	_, _, err := p.Process(ctx, "tenant-001", texts)
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestSummarize(t *testing.T) {
	items := []domain.BatchItem{
		{Verdict: domain.Verdict{Label: domain.LabelFake}},
		{Verdict: domain.Verdict{Label: domain.LabelReal}},
		{Verdict: domain.Verdict{Label: domain.LabelReal}},
		{Verdict: domain.Verdict{Label: domain.LabelUnknown}},
	}

	summary := Summarize(items)
	if summary.Total != 4 {
		t.Errorf("expected total 4, got %d", summary.Total)
	}
	if summary.FakeCount != 1 {
		t.Errorf("expected 1 fake, got %d", summary.FakeCount)
	}
	if summary.RealCount != 2 {
		t.Errorf("expected 2 real, got %d", summary.RealCount)
	}
}
