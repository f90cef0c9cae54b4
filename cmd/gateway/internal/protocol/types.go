package protocol

const (
	ActionSubscribe      = "subscribe"
	ActionUnsubscribe    = "unsubscribe"
	ActionUnsubscribeAll = "unsubscribe_all"
	ActionSetThreshold   = "set_threshold"
	ActionSetMode        = "set_mode"
)

const (
	TypeAck   = "ack"
	TypeError = "error"
)

type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

// RequestPayload carries the arguments of every action; each action reads
// only its own fields.
type RequestPayload struct {
	Assets []string `json:"assets,omitempty"` // subscribe, unsubscribe
	Asset  string   `json:"id,omitempty"`     // set_threshold
	Value  *float64 `json:"value,omitempty"`  // set_threshold, 0 clears
	Mode   string   `json:"mode,omitempty"`   // set_mode
}

// WSResponse answers a request. Feed data is pushed as raw FeedEvent JSON.
type WSResponse struct {
	Type    string      `json:"type"`             // "ack", "error"
	ID      string      `json:"id,omitempty"`     // Matches request ID
	Status  string      `json:"status,omitempty"` // "success", "error"
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
