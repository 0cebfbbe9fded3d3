package model

import (
	"strings"

	"github.com/google/uuid"
)

type PoemLine struct {
	SenryuID      uuid.UUID
	OriginUserID  uuid.UUID
	CurrentUserID uuid.UUID
	Cells         [PoemLength]string
}

// Rows groups the cells into 5/7/5 rows. Empty cells are kept as "".
func (l PoemLine) Rows() [3][]string {
	var rows [3][]string
	start := 0
	for i, n := range RowLengths {
		rows[i] = l.Cells[start : start+n]
		start += n
	}
	return rows
}

func (l PoemLine) Text() [3]string {
	var text [3]string
	for i, row := range l.Rows() {
		text[i] = strings.Join(row, "")
	}
	return text
}

// BuildPoem lays characters out onto the lines of their senryu.
// Characters of unknown senryus or out-of-range indexes are ignored.
func BuildPoem(senryus []Senryu, characters []Character) []PoemLine {
	lines := make([]PoemLine, len(senryus))
	pos := make(map[uuid.UUID]int, len(senryus))
	for i, s := range senryus {
		lines[i] = PoemLine{
			SenryuID:      s.ID,
			OriginUserID:  s.OriginUserID,
			CurrentUserID: s.CurrentUserID,
		}
		pos[s.ID] = i
	}
	for _, c := range characters {
		i, ok := pos[c.SenryuID]
		if !ok || c.Index < 0 || c.Index >= PoemLength {
			continue
		}
		lines[i].Cells[c.Index] = c.Character
	}
	return lines
}
