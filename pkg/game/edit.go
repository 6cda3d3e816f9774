package game

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const pieceLetters = "PNBRQKpnbrqk"

// edit puts the piece of an edit record onto its square. The position is
// rebuilt from an edited FEN: castling rights which no longer hold are
// dropped and the en passant target is cleared.
func (b *Board) edit(m Move) error {
	if m.Target >= NoSquare {
		return errors.Wrapf(ErrIllegalEdit, "%s: no such square", m)
	}

	if m.Piece != 0 && strings.IndexByte(pieceLetters, m.Piece) < 0 {
		return errors.Wrapf(ErrIllegalEdit, "%s: unknown piece", m)
	}

	fenstr, err := b.FEN()
	if err != nil {
		return err
	}

	fields := strings.Fields(fenstr)
	mailbox, err := expandPlacement(fields[0])
	if err != nil {
		return errors.WithMessage(err, "edit")
	}

	mailbox[m.Target] = m.Piece

	// Positions without exactly one king per side can't be played on.
	if strings.Count(string(mailbox[:]), "K") != 1 ||
		strings.Count(string(mailbox[:]), "k") != 1 {
		return errors.Wrapf(ErrIllegalEdit, "%s: each side needs one king", m)
	}

	fields[0] = compressPlacement(mailbox)
	fields[2] = castlingRights(mailbox, fields[2])
	fields[3] = "-"

	b.load(strings.Join(fields, " "))
	return nil
}

// expandPlacement turns the placement field of a FEN into a square indexed
// array of piece letters, with 0 for empty squares.
func expandPlacement(placement string) ([64]byte, error) {
	var mailbox [64]byte

	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return mailbox, errors.Errorf("game: placement %q has %d ranks", placement, len(ranks))
	}

	for i, rank := range ranks {
		r, file := 7-i, 0
		for _, c := range []byte(rank) {
			switch {
			case c >= '1' && c <= '8':
				file += int(c - '0')
			case strings.IndexByte(pieceLetters, c) >= 0:
				if file < 8 {
					mailbox[r*8+file] = c
				}
				file++
			default:
				return mailbox, errors.Errorf("game: bad character %q in placement", c)
			}
		}

		if file != 8 {
			return mailbox, errors.Errorf("game: rank %d of placement has %d files", r+1, file)
		}
	}

	return mailbox, nil
}

func compressPlacement(mailbox [64]byte) string {
	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		empty := 0
		for file := 0; file < 8; file++ {
			c := mailbox[r*8+file]
			if c == 0 {
				empty++
				continue
			}

			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteByte(c)
		}

		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if r > 0 {
			sb.WriteByte('/')
		}
	}

	return sb.String()
}

func castlingRights(mailbox [64]byte, rights string) string {
	holds := map[rune]bool{
		'K': mailbox[4] == 'K' && mailbox[7] == 'R',
		'Q': mailbox[4] == 'K' && mailbox[0] == 'R',
		'k': mailbox[60] == 'k' && mailbox[63] == 'r',
		'q': mailbox[60] == 'k' && mailbox[56] == 'r',
	}

	var kept strings.Builder
	for _, right := range rights {
		if holds[right] {
			kept.WriteRune(right)
		}
	}

	if kept.Len() == 0 {
		return "-"
	}
	return kept.String()
}
