package game

import (
	"math/rand"
	"sort"
)

const (
	// GridSize is the width and height of a bingo card.
	GridSize = 5
	// CellCount is the number of cells on a card.
	CellCount = GridSize * GridSize
	// FreeCell is the index of the center cell, marked on every card.
	FreeCell = 12
	// FreeSpace is the value stored in the center cell.
	FreeSpace = 0
	// MaxNumber is the highest ball in a 75-ball game.
	MaxNumber = 75
	// ColumnBand is the count of numbers each column draws from.
	ColumnBand = MaxNumber / GridSize
)

// Card is a 5x5 grid indexed [row][col]. Column c holds numbers in
// [c*15+1, c*15+15]; the center holds FreeSpace.
type Card [GridSize][GridSize]int

// GenerateCard deals a fresh card. Each column is sampled without
// replacement from its band and sorted top to bottom.
func GenerateCard(rng *rand.Rand) Card {
	var card Card
	for col := 0; col < GridSize; col++ {
		low := col*ColumnBand + 1

		band := make([]int, ColumnBand)
		for i := range band {
			band[i] = low + i
		}
		// partial Fisher-Yates: the first GridSize slots end up uniformly chosen
		for i := 0; i < GridSize; i++ {
			j := i + rng.Intn(len(band)-i)
			band[i], band[j] = band[j], band[i]
		}
		picked := band[:GridSize]
		sort.Ints(picked)

		for row := 0; row < GridSize; row++ {
			card[row][col] = picked[row]
		}
	}
	card[FreeCell/GridSize][FreeCell%GridSize] = FreeSpace
	return card
}

// At returns the value of the cell at index row*5+col.
func (c Card) At(cell int) int {
	return c[cell/GridSize][cell%GridSize]
}

// Valid reports whether every column stays inside its band with distinct
// values and the center is the free space.
func (c Card) Valid() bool {
	for col := 0; col < GridSize; col++ {
		seen := make(map[int]bool, GridSize)
		for row := 0; row < GridSize; row++ {
			v := c[row][col]
			if row*GridSize+col == FreeCell {
				if v != FreeSpace {
					return false
				}
				continue
			}
			if v < 1 || v > MaxNumber || ColumnOf(v) != col || seen[v] {
				return false
			}
			seen[v] = true
		}
	}
	return true
}

// ColumnOf returns the column whose band contains n.
func ColumnOf(n int) int {
	return (n - 1) / ColumnBand
}
