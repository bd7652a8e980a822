// Package registry holds the relay's in-memory room and connection state.
// Both structures are mutated exclusively by the relay hub loop, one
// envelope at a time, so they carry no locking of their own.
package registry

import (
	"sort"
	"time"
)

// Room is a named, ephemeral group of participants.
type Room struct {
	ID      string
	Created time.Time
	members map[string]struct{}
}

// Rooms maps room ids to their participant sets. An empty room never
// survives a Remove: the last departure deletes the room entirely.
type Rooms struct {
	rooms map[string]*Room
}

// NewRooms creates an empty room registry.
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]*Room)}
}

// Ensure returns the room with the given id, creating it with an empty
// participant set if absent. It never fails.
func (r *Rooms) Ensure(roomID string) *Room {
	room, ok := r.rooms[roomID]
	if !ok {
		room = &Room{
			ID:      roomID,
			Created: time.Now(),
			members: make(map[string]struct{}),
		}
		r.rooms[roomID] = room
	}
	return room
}

// Add inserts participantID into the room's set, creating the room if
// needed. Adding an existing member is a no-op.
func (r *Rooms) Add(roomID, participantID string) {
	r.Ensure(roomID).members[participantID] = struct{}{}
}

// Remove deletes participantID from the room. When the set becomes empty
// the room itself is deleted. Absent room or participant is a no-op.
func (r *Rooms) Remove(roomID, participantID string) {
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(room.members, participantID)
	if len(room.members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Participants returns the current member ids, sorted for deterministic
// fan-out order, or an empty slice if the room does not exist.
func (r *Rooms) Participants(roomID string) []string {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(room.members))
	for id := range room.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Size returns the number of participants in the room (0 if absent).
func (r *Rooms) Size(roomID string) int {
	room, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	return len(room.members)
}

// RoomInfo is a read-only view of one room for the HTTP listing.
type RoomInfo struct {
	ID           string    `json:"id"`
	Participants int       `json:"participants"`
	Created      time.Time `json:"created"`
}

// Snapshot lists all rooms with their participant counts, sorted by id.
func (r *Rooms) Snapshot() []RoomInfo {
	infos := make([]RoomInfo, 0, len(r.rooms))
	for _, room := range r.rooms {
		infos = append(infos, RoomInfo{
			ID:           room.ID,
			Participants: len(room.members),
			Created:      room.Created,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
