package game

// Result represents the state of a game's outcome.
type Result int

const (
	Ongoing Result = iota
	WhiteWins
	BlackWins
	Draw
)

// GameLostBy maps the side which lost to the game's Result, white first.
var GameLostBy = [2]Result{
	0: BlackWins,
	1: WhiteWins,
}

// String returns the PGN result tag of the given Result.
func (result Result) String() string {
	switch result {
	case Ongoing:
		return "*"
	case WhiteWins:
		return "1-0"
	case Draw:
		return "1/2-1/2"
	case BlackWins:
		return "0-1"
	default:
		return "?-?"
	}
}
