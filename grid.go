package server

// Tile is one grid cell. A tile holds at most one plant; placing on an
// occupied tile only succeeds through the fusion resolver.
type Tile struct {
	Row      int
	Col      int
	Occupant string // plant id, empty when free
}

type Grid struct {
	tiles [laneCount][columnCount]Tile
}

func newGrid() *Grid {
	g := &Grid{}
	for row := 0; row < laneCount; row++ {
		for col := 0; col < columnCount; col++ {
			g.tiles[row][col] = Tile{Row: row, Col: col}
		}
	}
	return g
}

func (g *Grid) inBounds(row, col int) bool {
	return row >= 0 && row < laneCount && col >= 0 && col < columnCount
}

func (g *Grid) occupant(row, col int) string {
	if !g.inBounds(row, col) {
		return ""
	}
	return g.tiles[row][col].Occupant
}

func (g *Grid) occupy(row, col int, plantID string) bool {
	if !g.inBounds(row, col) || plantID == "" || g.tiles[row][col].Occupant != "" {
		return false
	}
	g.tiles[row][col].Occupant = plantID
	return true
}

// clear frees the tile only when plantID still owns it.
func (g *Grid) clear(row, col int, plantID string) {
	if !g.inBounds(row, col) {
		return
	}
	if g.tiles[row][col].Occupant == plantID {
		g.tiles[row][col].Occupant = ""
	}
}

type placeOutcome int

const (
	placeRejected placeOutcome = iota
	placeVacant
	placeRestored
	placeFused
)

// resolvePlacement decides what placing kind on (row, col) means without
// mutating anything. For placeFused the returned kind is the fusion result.
func (w *World) resolvePlacement(row, col int, kind PlantKind) (placeOutcome, PlantKind, *plantState) {
	if !w.grid.inBounds(row, col) {
		return placeRejected, kind, nil
	}
	occupantID := w.grid.occupant(row, col)
	if occupantID == "" {
		return placeVacant, kind, nil
	}
	occupant := w.plants[occupantID]
	if occupant == nil || occupant.dying {
		return placeRejected, kind, nil
	}
	if occupant.Kind == kind {
		return placeRestored, kind, occupant
	}
	if result, ok := w.fusionTable[fusionKey{Existing: occupant.Kind, Incoming: kind}]; ok {
		return placeFused, result, occupant
	}
	return placeRejected, kind, occupant
}
