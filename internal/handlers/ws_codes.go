// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the lobby supervisor.
// These give clients a more specific reason than the standard codes.
const (
	AdmissionRejectedError websocket.StatusCode = 3000 // connect handshake refused (bad name, taken name, full server).
	NotConnectedError      websocket.StatusCode = 3001 // first message was not a valid connect request.
	SlowConsumerError      websocket.StatusCode = 3002 // client could not keep up with lobby events.
	IdleTimeoutError       websocket.StatusCode = 3003 // nothing received within the receive timeout.
)
