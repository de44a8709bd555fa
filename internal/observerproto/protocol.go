package observerproto

// Version is the chunk event stream protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to move the watched area.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Center          [2]int32 `json:"center"`
	ChunkRadius     int      `json:"chunk_radius"`

	// Attach the packed lightmap to CHUNK_LOADED events.
	Lights bool `json:"lights,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string   `json:"protocol_version"`
	ChunkSize       [3]int   `json:"chunk_size"`
	BlockPalette    []string `json:"block_palette"`
}

// Server -> Client. One per chunk event inside the subscribed area.
type ChunkEventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	Event           string `json:"event"`
	CX              int32  `json:"cx"`
	CZ              int32  `json:"cz"`
	Ready           bool   `json:"ready"`

	// Little-endian packed lights, base64 in JSON.
	Lights []byte `json:"lights,omitempty"`
}
