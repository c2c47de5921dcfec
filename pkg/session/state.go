package session

// ClientState is the position of a Client in its transfer lifecycle.
type ClientState int

const (
	ClientDisconnected ClientState = iota
	ClientConnected
	ClientMetadataSent
	ClientTransferComplete
	ClientFailed
)

func (s ClientState) String() string {
	switch s {
	case ClientDisconnected:
		return "disconnected"
	case ClientConnected:
		return "connected"
	case ClientMetadataSent:
		return "metadata-sent"
	case ClientTransferComplete:
		return "transfer-complete"
	case ClientFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ServerState is the position of a Server in its receive lifecycle.
// ServerListening belongs to the adapter; a Server starts at ServerAccepted.
type ServerState int

const (
	ServerListening ServerState = iota
	ServerAccepted
	ServerCountKnown
	ServerReceiving
	ServerDone
	ServerFailed
)

func (s ServerState) String() string {
	switch s {
	case ServerListening:
		return "listening"
	case ServerAccepted:
		return "accepted"
	case ServerCountKnown:
		return "count-known"
	case ServerReceiving:
		return "receiving"
	case ServerDone:
		return "done"
	case ServerFailed:
		return "failed"
	default:
		return "unknown"
	}
}
