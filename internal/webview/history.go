package webview

// HistoryItem is one back/forward entry.
type HistoryItem struct {
	URL         string `json:"url"`
	OriginalURL string `json:"original_url"`
	Title       string `json:"title"`
}

// History is the engine's back/forward list.
type History struct {
	Items   []HistoryItem `json:"items"`
	Current int           `json:"current"`
}

// CurrentItem returns the entry at the current index, or nil.
func (h *History) CurrentItem() *HistoryItem {
	if h == nil || h.Current < 0 || h.Current >= len(h.Items) {
		return nil
	}
	return &h.Items[h.Current]
}

// Len returns the number of entries.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Items)
}
