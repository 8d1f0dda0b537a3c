package domain

// RoomID keys a broadcast group. A room is either a conversation room
// (every connection currently viewing that conversation) or a personal
// room (every connection of one user, for out-of-band delivery).
// Rooms exist only while at least one connection is joined.
type RoomID string

func PersonalRoom(u UserID) RoomID { return RoomID(u) }

func ConversationRoom(c ConversationID) RoomID { return RoomID(c) }
