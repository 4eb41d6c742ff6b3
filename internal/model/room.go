package model

import (
	"strings"
	"time"
)

// RoomCode is the human-shareable identifier for a room
type RoomCode string

// ParseRoomCode normalizes user input; codes are case-insensitive
func ParseRoomCode(s string) RoomCode {
	return RoomCode(strings.ToUpper(strings.TrimSpace(s)))
}

// RoomStatus is the lifecycle state of a room
type RoomStatus string

const (
	RoomStatusPending RoomStatus = "pending"
	RoomStatusActive  RoomStatus = "active"
	RoomStatusXWins   RoomStatus = "finished_x_wins"
	RoomStatusOWins   RoomStatus = "finished_o_wins"
	RoomStatusDraw    RoomStatus = "draw"
)

// IsTerminal reports whether the status absorbs all further moves
func (s RoomStatus) IsTerminal() bool {
	return s == RoomStatusXWins || s == RoomStatusOWins || s == RoomStatusDraw
}

// rank orders statuses along the only legal path pending -> active -> terminal
func (s RoomStatus) rank() int {
	switch s {
	case RoomStatusPending:
		return 0
	case RoomStatusActive:
		return 1
	default:
		return 2
	}
}

// Mark is the content of a board cell
type Mark string

const (
	MarkEmpty Mark = " "
	MarkX     Mark = "X"
	MarkO     Mark = "O"
)

// Other returns the opposing mark
func (m Mark) Other() Mark {
	if m == MarkX {
		return MarkO
	}
	return MarkX
}

// BoardCells is the number of cells on a board
const BoardCells = 9

// Board is a 3x3 grid in row-major order
type Board [BoardCells]Mark

// winLines lists every row, column and diagonal
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// NewBoard returns an empty board
func NewBoard() Board {
	var b Board
	for i := range b {
		b[i] = MarkEmpty
	}
	return b
}

// IsEmpty reports whether a cell holds no mark
func (b Board) IsEmpty(i int) bool {
	return b[i] == MarkEmpty || b[i] == ""
}

// Winner returns the mark holding a complete line, or MarkEmpty
func (b Board) Winner() Mark {
	for _, line := range winLines {
		m := b[line[0]]
		if m != MarkX && m != MarkO {
			continue
		}
		if b[line[1]] == m && b[line[2]] == m {
			return m
		}
	}
	return MarkEmpty
}

// Full reports whether every cell is occupied
func (b Board) Full() bool {
	return b.Moves() == BoardCells
}

// Moves counts occupied cells
func (b Board) Moves() int {
	n := 0
	for i := range b {
		if !b.IsEmpty(i) {
			n++
		}
	}
	return n
}

// Room is one match with two seats and a shared board
type Room struct {
	ID        string
	Code      RoomCode
	PlayerX   UserRef // first mover, always the creator or challenger
	PlayerO   UserRef
	Board     Board
	TurnOwner UserID // empty once terminal
	Status    RoomStatus
	IsPublic  bool
	Winner    UserRef
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarkOf returns the mark of the seat held by the user, or MarkEmpty
func (r *Room) MarkOf(id UserID) Mark {
	switch {
	case id == "":
		return MarkEmpty
	case r.PlayerX.ID == id:
		return MarkX
	case r.PlayerO.ID == id:
		return MarkO
	}
	return MarkEmpty
}

// Seat returns the occupant of the seat playing the given mark
func (r *Room) Seat(m Mark) UserRef {
	if m == MarkX {
		return r.PlayerX
	}
	if m == MarkO {
		return r.PlayerO
	}
	return UserRef{}
}

// IsFull reports whether both seats are occupied
func (r *Room) IsFull() bool {
	return !r.PlayerX.IsZero() && !r.PlayerO.IsZero()
}

// TurnOwnerRef resolves the turn owner to a reference
func (r *Room) TurnOwnerRef() UserRef {
	switch r.TurnOwner {
	case "":
		return UserRef{}
	case r.PlayerX.ID:
		return r.PlayerX
	case r.PlayerO.ID:
		return r.PlayerO
	}
	return UserRef{ID: r.TurnOwner}
}

// Progress reports how far the room has advanced; it never decreases for a room
func (r *Room) Progress() (statusRank, moves int) {
	return r.Status.rank(), r.Board.Moves()
}

// Clone returns a deep copy
func (r *Room) Clone() *Room {
	c := *r
	return &c
}
