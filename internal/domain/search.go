package domain

// SearchQuery describes one logical search across all open sessions.
type SearchQuery struct {
	Pattern       string `json:"pattern"`
	CaseSensitive bool   `json:"case_sensitive"`
	IsRegex       bool   `json:"is_regex"`
}

// Blank reports whether the query should short-circuit to "no search".
func (q SearchQuery) Blank() bool {
	for i := 0; i < len(q.Pattern); i++ {
		switch q.Pattern[i] {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}

// SearchResult is one matching entry within one session. Ordinal is the
// entry's 0-based position in the session snapshot; LineNumber is the 1-based
// equivalent used at the human-facing boundary.
type SearchResult struct {
	SourceLabel string `json:"source_label"`
	Ordinal     int    `json:"-"`
	LineNumber  int    `json:"line_number"`
	EntryText   string `json:"entry_text"`
	PreviewText string `json:"preview_text"`
}

// SearchResultGroup holds all matches for one session, sorted by ordinal.
// Groups are rebuilt wholesale on every search, never mutated in place.
type SearchResultGroup struct {
	SourceLabel string         `json:"source_label"`
	Results     []SearchResult `json:"results"`
	IsExpanded  bool           `json:"is_expanded"`
}

// SearchOutcome is the assembled result of one search pass. Truncated is set
// when any session's scan stopped early at the per-session result cap.
type SearchOutcome struct {
	Groups    []SearchResultGroup `json:"groups"`
	Truncated bool                `json:"truncated"`
}

// TotalMatches sums the result counts across all groups.
func (o *SearchOutcome) TotalMatches() int {
	var n int
	for _, g := range o.Groups {
		n += len(g.Results)
	}
	return n
}
