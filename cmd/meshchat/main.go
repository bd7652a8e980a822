// Meshchat — CLI entry point.
//
// The tool has two faces: `meshchat serve` runs the signaling relay (HTTP
// API + WebSocket endpoint), and `meshchat join` enters a room as a chat
// participant, negotiating direct WebRTC links with the other members and
// falling back to server relay while no link is up.
package main

func main() {
	Execute()
}
