package game

// centerColumn is the strongest opening column on a 7-wide board.
const centerColumn = 3

// ChooseColumn picks the bot's next column for the given board. The tiers
// are checked in order and each one scans the legal columns ascending, so
// the choice is deterministic for a given position:
//
//  1. a column that wins immediately
//  2. a column the opponent would win with on their next drop
//  3. a column whose drop leaves the opponent no immediate winning reply
//  4. the center column
//  5. the lowest legal column
//
// Every simulation runs on its own copy of the board. Returns ok=false only
// when the board is full.
func ChooseColumn(b Board, bot, opponent Mark) (int, bool) {
	legal := b.LegalColumns()
	if len(legal) == 0 {
		return -1, false
	}

	for _, col := range legal {
		sim := b
		row, _ := sim.Drop(col, bot)
		if sim.CheckWin(row, col, bot) {
			return col, true
		}
	}

	for _, col := range legal {
		sim := b
		row, _ := sim.Drop(col, opponent)
		if sim.CheckWin(row, col, opponent) {
			return col, true
		}
	}

	for _, col := range legal {
		sim := b
		sim.Drop(col, bot)
		if !hasImmediateWin(sim, opponent) {
			return col, true
		}
	}

	for _, col := range legal {
		if col == centerColumn {
			return col, true
		}
	}

	return legal[0], true
}

// hasImmediateWin reports whether any legal drop wins for m on the spot.
func hasImmediateWin(b Board, m Mark) bool {
	for _, col := range b.LegalColumns() {
		sim := b
		row, _ := sim.Drop(col, m)
		if sim.CheckWin(row, col, m) {
			return true
		}
	}
	return false
}
