package models

// Bookmark is one entry of the auxiliary bookmark dataset. Unlike clipboard
// items, bookmarks sync as a single blob with last-writer-wins semantics.
type Bookmark struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Group      string `json:"group,omitempty"`
	CreateTime int64  `json:"createTime"`
}

// BookmarkData is the full bookmark blob stored at bookmark-data.json.
// Timestamp is the single write clock: the newer blob wins wholesale.
type BookmarkData struct {
	Timestamp int64      `json:"timestamp"`
	DeviceID  string     `json:"deviceId"`
	Bookmarks []Bookmark `json:"bookmarks"`
}
