package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// GalleryRequest picks an image from the gallery. An empty ref picks the latest.
type GalleryRequest struct {
	Ref string `json:"ref"`
}

// ShareRequest shares a history entry, explicit content or the current
// summary. Channel and Channels may be combined.
type ShareRequest struct {
	EntryID  string   `json:"entry_id,omitempty"`
	Content  string   `json:"content,omitempty"`
	Language string   `json:"language,omitempty"`
	Channel  string   `json:"channel,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Title    string   `json:"title,omitempty"`
}

// ShareResult is the outcome of one share channel
type ShareResult struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// ShareResponse lists per-channel outcomes in request order
type ShareResponse struct {
	Results []ShareResult `json:"results"`
}

// HistoryResponse lists history entries, most recent first
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
	Count   int            `json:"count"`
}
