// Copyright © 2024 Rak Laptudirm <rak@laptudirm.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/briandowns/spinner"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"laptudirm.com/x/kibitz/pkg/config"
	"laptudirm.com/x/kibitz/pkg/engine"
	"laptudirm.com/x/kibitz/pkg/game"
	"laptudirm.com/x/kibitz/pkg/peer"
	"laptudirm.com/x/kibitz/pkg/transport"
)

// SPIN is the spinner character set shown while waiting on the network.
const SPIN = 14

// kibitz peer
func Peer(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Play a game against someone on another computer",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`peer plays a game of chess against an opponent running kibitz
			on another computer. One of the players hosts the game and
			the other one joins it using the host's address.

			Moves are typed in, one per line, in coordinate notation or in
			standard algebraic notation. Type "resign" to resign.

			With --engine, or an engine in the config file, the local
			moves are played by a UCI chess engine instead.`),
	}

	cmd.PersistentFlags().String("engine", "", "UCI engine to play the local side")

	cmd.AddCommand(host(s))
	cmd.AddCommand(join(s))
	return cmd
}

// kibitz peer host
func host(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a game and wait for an opponent",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			sideStr, _ := cmd.Flags().GetString("side")
			side, err := peer.ParseSide(sideStr)
			if err != nil {
				return err
			}

			port := s.config.Peer.Port
			if cmd.Flags().Changed("port") {
				port, _ = cmd.Flags().GetInt("port")
				if err := config.ValidPort(port); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			setup := peer.NewSetup(port, s.config.Peer.Timeout)

			session, err := peer.Bind(ctx, setup)
			if err != nil {
				return err
			}
			defer session.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Hosting on \x1b[34m%s\x1b[0m, port %d. Your opponent can join with:\n", setup.Hostname(), port)
			for _, address := range setup.Addresses() {
				fmt.Fprintf(out, "  kibitz peer join %s\n", net.JoinHostPort(address, strconv.Itoa(port)))
			}

			sp := spinner.New(spinner.CharSets[SPIN], 100*time.Millisecond)
			sp.Suffix = " Waiting for an opponent"
			sp.Writer = cmd.ErrOrStderr()
			sp.Start()
			err = session.Accept(ctx, side.Other())
			sp.Stop()

			if err != nil {
				return err
			}

			return play(ctx, cmd, s, session, side)
		},
	}

	cmd.Flags().Int("port", peer.DefaultPort, "Port to listen on")
	cmd.Flags().String("side", "white", "Side to play, white or black")
	return cmd
}

// kibitz peer join
func join(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "join address",
		Short: "Join a game hosted on another computer",
		Args:  cobra.ExactArgs(1),
		Long: heredoc.Doc(`join connects to a game hosted with "kibitz peer host". The
			address is a host name or IP address, optionally followed by
			a port, like "192.168.1.7:4567". The port from the config is
			used if none is given.`),

		RunE: func(cmd *cobra.Command, args []string) error {
			address := args[0]
			if _, _, err := net.SplitHostPort(address); err != nil {
				address = net.JoinHostPort(address, strconv.Itoa(s.config.Peer.Port))
			}

			ctx := cmd.Context()
			setup := peer.NewSetup(s.config.Peer.Port, s.config.Peer.Timeout)

			session, side, err := peer.Dial(ctx, setup, address)
			if err != nil {
				return err
			}
			defer session.Close()

			return play(ctx, cmd, s, session, side)
		},
	}
}

// play runs a match with the local moves read from the terminal or chosen
// by an engine.
func play(ctx context.Context, cmd *cobra.Command, s *settings, session *peer.Session, side peer.Side) error {
	out := cmd.OutOrStdout()

	var local peer.Player = &peer.LinePlayer{Lines: transport.Stdio(cmd.InOrStdin(), out)}

	engineConfig := s.config.Engine
	if cmd.Flags().Changed("engine") {
		engineConfig.Cmd, _ = cmd.Flags().GetString("engine")
	}

	if engineConfig.Cmd != "" {
		e, err := engine.Start(engineConfig)
		if err != nil {
			return err
		}
		defer e.Close()

		logrus.WithField("engine", engineConfig.Cmd).Info("Engine is playing the local side")
		local = e
	}

	board := game.New()
	match := peer.Match{
		Board:  board,
		Side:   side,
		Local:  local,
		Remote: session,

		OnMove: func(mover peer.Side, m game.Move) {
			fen, err := board.FEN()
			if err != nil {
				fen = "FEN_ERROR"
			}

			if mover == side {
				fmt.Fprintf(out, "You played %s\n%s\n", m, fen)
			} else {
				fmt.Fprintf(out, "Opponent played \x1b[33m%s\x1b[0m\n%s\n", m, fen)
			}
		},
	}

	fmt.Fprintf(out, "You are playing %s.\n", side)

	outcome, err := match.Play(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			logrus.Info("Input closed, leaving the game")
			return nil
		}
		return err
	}

	fmt.Fprintf(out, "%s {%s}\n", outcome.Result, outcome.Reason)
	return nil
}
