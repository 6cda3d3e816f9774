package command

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

// Lines is a line oriented connection to the controlling software.
type Lines interface {
	ReadLine() (string, error)
	WriteLine(line string) error
}

// Serve reads commands from lines and writes back their responses until
// the exit command is received, the input ends or the context is done.
func Serve(ctx context.Context, lines Lines, d *Dispatcher) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := lines.ReadLine()
		switch {
		case errors.Is(err, io.EOF):
			logrus.Debug("Command input closed")
			return nil
		case err != nil:
			return err
		}

		response, keepRunning := d.Execute(line)
		if err := lines.WriteLine(response); err != nil {
			return err
		}

		if !keepRunning {
			logrus.Debug("Exit command received")
			return nil
		}
	}
}
