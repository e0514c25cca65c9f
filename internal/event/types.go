package event

// QRData is the data for session.qr events: a fresh pairing code that the
// subscriber renders for the operator to scan.
type QRData struct {
	ClientID string `json:"clientId"`
	QR       string `json:"qr"`
}

// StatusData is the data for session.status events.
type StatusData struct {
	ClientID string `json:"clientId"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// CleanedData is the data for session.cleaned events, emitted once teardown
// has removed the session from the registry.
type CleanedData struct {
	ClientID string `json:"clientId"`
	Status   string `json:"status"`
	Reason   string `json:"motivo"`
}
