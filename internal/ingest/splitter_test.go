package ingest

import (
	"strings"
	"testing"
)

func TestSplitter_Split_ShortText(t *testing.T) {
	s := NewSplitter(100, 20)

	chunks := s.Split("a short paragraph that fits in one chunk")
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0] != "a short paragraph that fits in one chunk" {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestSplitter_Split_Empty(t *testing.T) {
	s := NewSplitter(100, 20)

	if got := s.Split(""); len(got) != 0 {
		t.Errorf("Split(\"\") = %v, want no chunks", got)
	}
	if got := s.Split("   \n\n  "); len(got) != 0 {
		t.Errorf("Split(whitespace) = %v, want no chunks", got)
	}
}

func TestSplitter_Split_PrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(50, 10)

	first := strings.Repeat("a", 30)
	second := strings.Repeat("b", 30)
	chunks := s.Split(first + "\n\n" + second)

	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2: %q", len(chunks), chunks)
	}
	if chunks[0] != first {
		t.Errorf("first chunk = %q, want the first paragraph", chunks[0])
	}
	if chunks[1] != second {
		t.Errorf("second chunk = %q, want the second paragraph", chunks[1])
	}
}

func TestSplitter_Split_RespectsSizeLimit(t *testing.T) {
	s := NewSplitter(100, 20)

	// 60 words of 9+1 characters force multiple chunks split on spaces.
	text := strings.TrimSpace(strings.Repeat("wordwordw ", 60))
	chunks := s.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want several", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("chunk %d length = %d, want <= 100", i, len(chunk))
		}
	}
}

func TestSplitter_Split_OverlapCarriesTail(t *testing.T) {
	s := NewSplitter(30, 10)

	chunks := s.Split("one two three four five six seven eight nine ten eleven twelve")
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want several: %q", len(chunks), chunks)
	}

	// Each chunk after the first must start with words already seen at
	// the end of the previous chunk.
	for i := 1; i < len(chunks); i++ {
		firstWord := strings.Fields(chunks[i])[0]
		if !strings.Contains(chunks[i-1], firstWord) {
			t.Errorf("chunk %d starts with %q, absent from previous chunk %q", i, firstWord, chunks[i-1])
		}
	}
}

func TestSplitter_Split_HardSplitWithoutSeparators(t *testing.T) {
	s := NewSplitter(50, 10)

	text := strings.Repeat("x", 130)
	chunks := s.Split(text)

	if len(chunks) < 3 {
		t.Fatalf("chunks = %d, want >= 3", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 50 {
			t.Errorf("chunk %d length = %d, want <= 50", i, len(chunk))
		}
	}

	// No text may be lost: the chunks must cover all 130 characters.
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total < 130 {
		t.Errorf("chunks cover %d characters, want >= 130", total)
	}
}

func TestNewSplitter_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		overlap   int
		wantSize  int
		wantValid bool
	}{
		{name: "zero size uses default", size: 0, overlap: 0, wantSize: DefaultChunkSize},
		{name: "negative overlap corrected", size: 100, overlap: -5, wantSize: 100},
		{name: "overlap larger than size corrected", size: 100, overlap: 150, wantSize: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSplitter(tt.size, tt.overlap)
			if s.chunkSize != tt.wantSize {
				t.Errorf("chunkSize = %d, want %d", s.chunkSize, tt.wantSize)
			}
			if s.overlap < 0 || s.overlap >= s.chunkSize {
				t.Errorf("overlap = %d out of range for chunk size %d", s.overlap, s.chunkSize)
			}
		})
	}
}
