package registry

// Entry is the reverse-index record for one live connection: which room it
// sits in and the display name it joined with. The relay uses it to stamp
// sender names on forwarded envelopes instead of trusting the client to
// self-report per message.
type Entry struct {
	RoomID      string
	DisplayName string
}

// Directory maps connection ids to their Entry. An entry exists exactly as
// long as the participant does: Register on join, Unregister on disconnect.
type Directory struct {
	entries map[string]Entry
}

// NewDirectory creates an empty connection directory.
func NewDirectory() *Directory {
	return &Directory{entries: make(map[string]Entry)}
}

// Register records the room and display name for a connection id.
func (d *Directory) Register(connID, roomID, displayName string) {
	d.entries[connID] = Entry{RoomID: roomID, DisplayName: displayName}
}

// Lookup returns the entry for connID, with ok=false when unknown.
func (d *Directory) Lookup(connID string) (Entry, bool) {
	e, ok := d.entries[connID]
	return e, ok
}

// Unregister removes the entry for connID. Unknown ids are a no-op.
func (d *Directory) Unregister(connID string) {
	delete(d.entries, connID)
}
