package types

// ClipboardItem is one entry of the clipboard broadcast stream.
type ClipboardItem struct {
	Content   string `json:"content"`
	Timestamp uint64 `json:"timestamp"`
	Source    string `json:"source"`
}

// FileRecord describes an uploaded blob held by the file store.
type FileRecord struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Size       uint64 `json:"size"`
	UploadedAt uint64 `json:"uploaded_at"`
}

// Outbound message tags.
const (
	TypeConnected        = "connected"
	TypeClipboardHistory = "clipboard_history"
)

// Connected is the first frame a session receives.
type Connected struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClipboardHistory forwards one ClipboardItem to a session.
type ClipboardHistory struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp uint64 `json:"timestamp"`
	Source    string `json:"source"`
}

// NewClipboardHistory wraps item for the wire.
func NewClipboardHistory(item ClipboardItem) ClipboardHistory {
	return ClipboardHistory{
		Type:      TypeClipboardHistory,
		Content:   item.Content,
		Timestamp: item.Timestamp,
		Source:    item.Source,
	}
}

// UploadResult is the reply to a successful upload.
type UploadResult struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// ErrorReply is a structured error body.
type ErrorReply struct {
	Error string `json:"error"`
}
