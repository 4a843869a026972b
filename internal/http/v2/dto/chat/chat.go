package chat

// MessageRequest is the body of POST /v2/chat.
type MessageRequest struct {
	Text string `json:"text"`
}

// MessageResponse is the assistant reply.
type MessageResponse struct {
	ID           string `json:"id"`
	Sender       string `json:"sender"`
	Conversation string `json:"conversation"`
	Correction   string `json:"correction,omitempty"`
	CreatedAt    string `json:"createdAt"`
	Fallback     bool   `json:"fallback,omitempty"`
	Offline      bool   `json:"offline,omitempty"`
}
