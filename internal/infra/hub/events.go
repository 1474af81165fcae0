package hub

// JSON envelopes for the real-time wire protocol. Inbound messages carry a
// "type" discriminator; everything the server pushes does too.

type inboundEnvelope struct {
	Type   string `json:"type"`
	UserID int64  `json:"userId"`
}

type registeredEvent struct {
	Type   string `json:"type"` // "registered"
	UserID int64  `json:"userId"`
	Status string `json:"status"` // "success"
}

type typingStatusEvent struct {
	Type      string `json:"type"` // "typing_status"
	IsTyping  bool   `json:"isTyping"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

type errorEvent struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type chatResponseEvent struct {
	Type    string `json:"type"` // "chat_response"
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}
