package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boardFrom(s string) Board {
	b := NewBoard()
	for i, c := range s {
		switch c {
		case 'X':
			b[i] = MarkX
		case 'O':
			b[i] = MarkO
		}
	}
	return b
}

func TestBoardWinner(t *testing.T) {
	tests := []struct {
		name     string
		board    string
		expected Mark
	}{
		{"empty", ".........", MarkEmpty},
		{"top row X", "XXXOO....", MarkX},
		{"middle row O", "XX.OOOX..", MarkO},
		{"bottom row", "XO.XO.OOO", MarkO},
		{"left column", "XO.XO.X..", MarkX},
		{"middle column", "XO..O.XO.", MarkO},
		{"right column", "OOXX.X..X", MarkX},
		{"main diagonal", "XO.OX...X", MarkX},
		{"anti diagonal", "XXO.O.OX.", MarkO},
		{"full draw", "XOXXOOOXX", MarkEmpty},
		{"two in a row only", "XX.OO....", MarkEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, boardFrom(tt.board).Winner())
		})
	}
}

// lineOwner checks rows, columns and diagonals by coordinates
func lineOwner(b Board) Mark {
	at := func(r, c int) Mark { return b[r*3+c] }
	same := func(a, b, c Mark) bool { return a != MarkEmpty && a == b && b == c }
	for i := 0; i < 3; i++ {
		if same(at(i, 0), at(i, 1), at(i, 2)) {
			return at(i, 0)
		}
		if same(at(0, i), at(1, i), at(2, i)) {
			return at(0, i)
		}
	}
	if same(at(0, 0), at(1, 1), at(2, 2)) || same(at(0, 2), at(1, 1), at(2, 0)) {
		return at(1, 1)
	}
	return MarkEmpty
}

func TestBoardTerminalExhaustive(t *testing.T) {
	marks := []Mark{MarkEmpty, MarkX, MarkO}
	total := 1
	for i := 0; i < BoardCells; i++ {
		total *= 3
	}

	for n := 0; n < total; n++ {
		b := NewBoard()
		v := n
		for i := 0; i < BoardCells; i++ {
			b[i] = marks[v%3]
			v /= 3
		}

		owner := lineOwner(b)
		// Boards with lines for both marks are unreachable and have no single owner
		if owner == MarkEmpty {
			assert.Equal(t, MarkEmpty, b.Winner(), "board %v", b)
		} else {
			assert.NotEqual(t, MarkEmpty, b.Winner(), "board %v", b)
		}

		full := true
		for i := range b {
			if b[i] == MarkEmpty {
				full = false
			}
		}
		assert.Equal(t, full, b.Full(), "board %v", b)
	}
}

func TestRoomSeats(t *testing.T) {
	r := &Room{
		PlayerX:   UserRef{ID: "x", Username: "alice"},
		PlayerO:   UserRef{ID: "o", Username: "bob"},
		TurnOwner: "o",
	}

	assert.Equal(t, MarkX, r.MarkOf("x"))
	assert.Equal(t, MarkO, r.MarkOf("o"))
	assert.Equal(t, MarkEmpty, r.MarkOf("someone"))
	assert.Equal(t, MarkEmpty, r.MarkOf(""))
	assert.Equal(t, "bob", r.TurnOwnerRef().Username)
	assert.Equal(t, "alice", r.Seat(MarkX).Username)
	assert.True(t, r.IsFull())
}

func TestRoomStatusTerminal(t *testing.T) {
	assert.False(t, RoomStatusPending.IsTerminal())
	assert.False(t, RoomStatusActive.IsTerminal())
	assert.True(t, RoomStatusXWins.IsTerminal())
	assert.True(t, RoomStatusOWins.IsTerminal())
	assert.True(t, RoomStatusDraw.IsTerminal())
}

func TestParseRoomCode(t *testing.T) {
	assert.Equal(t, RoomCode("ABC234"), ParseRoomCode("  abc234 "))
}
