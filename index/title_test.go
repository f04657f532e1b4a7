package index

import "testing"

func TestPlainTitle(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "uppercase first line",
			body: "DISTRIBUTOR AGREEMENT\n\nThis agreement is made between...",
			want: "DISTRIBUTOR AGREEMENT",
		},
		{
			name: "title case line",
			body: "Annual Review of the Platform Team\n\nSummary follows.",
			want: "Annual Review of the Platform Team",
		},
		{
			name: "numbered section",
			body: "1. Introduction\n\nThe scope of this document...",
			want: "Introduction",
		},
		{
			name: "labelled chapter",
			body: "Chapter 3: Load Balancing\ncontent",
			want: "Load Balancing",
		},
		{
			name: "prose start yields nothing",
			body: "this document describes the ingestion pipeline in detail.\nmore prose",
			want: "",
		},
		{
			name: "sentence punctuation disqualifies",
			body: "The Meeting Happened On Tuesday.\nbody",
			want: "",
		},
		{
			name: "skips blank lines",
			body: "\n\n\nPROJECT TIMELINE\nbody",
			want: "PROJECT TIMELINE",
		},
		{
			name: "gives up after a few lines",
			body: "a\nb\nc\nd\ne\nTHE REAL TITLE\n",
			want: "",
		},
		{
			name: "overlong line rejected",
			body: "The Quick Brown Fox Jumps Over The Lazy Dog And Keeps Going Well Past Any Reasonable Heading Length Limit\n",
			want: "",
		},
		{
			name: "empty body",
			body: "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := plainTitle(tt.body); got != tt.want {
				t.Errorf("plainTitle = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractPlainTextTitle(t *testing.T) {
	paths := NewPathSet(nil)

	title, _ := Extract("docs/contract.txt", "MASTER SERVICE AGREEMENT\n\nsigned parties...", paths)
	if title != "MASTER SERVICE AGREEMENT" {
		t.Errorf("plain text title = %q", title)
	}

	// Markdown documents never use the plain-text heuristics, so a
	// heading-shaped first line without # stays out of the title.
	title, _ = Extract("notes/caps.md", "SHOUTING FIRST LINE\n\nbody", paths)
	if title != "caps" {
		t.Errorf("markdown fallback title = %q", title)
	}
}
