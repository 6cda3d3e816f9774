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

// Package config loads kibitz's settings. Values come from the defaults,
// then the YAML config file, then KIBITZ_* environment variables, which
// may also be set from a .env file. Command line flags override them all.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"laptudirm.com/x/kibitz/pkg/engine"
	"laptudirm.com/x/kibitz/pkg/peer"
)

// File is the default location of the config file.
var File = filepath.Join(xdg.ConfigHome, "kibitz", "config.yaml")

type Config struct {
	// Port, if set, makes the command protocol be served on this TCP
	// port instead of standard input and output.
	Port int `yaml:"port"`

	// WebSocket, if set, makes the command protocol be served over
	// WebSocket on this address, like ":8080".
	WebSocket string `yaml:"websocket"`

	Peer Peer `yaml:"peer"`

	// Engine, if its command is set, plays the local side of peer games.
	Engine engine.Config `yaml:"engine"`

	LogLevel string `yaml:"log-level"`
}

type Peer struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

func Default() Config {
	return Config{
		Peer: Peer{
			Port: peer.DefaultPort,
		},
		LogLevel: "info",
	}
}

// LoadDotenv sets environment variables from the given .env files, or
// from .env in the working directory. Missing files are ignored and
// variables which are already set are kept.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return pkgerrors.Wrapf(err, "config: loading %s", file)
		}
	}

	return nil
}

// Load reads the config file at path over the defaults and applies the
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logrus.WithField("file", path).Debug("No config file, using defaults")
	case err != nil:
		return config, pkgerrors.Wrap(err, "config: reading config file")
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, pkgerrors.Wrapf(err, "config: parsing %s", path)
		}
	}

	if err := config.applyEnv(); err != nil {
		return config, err
	}

	return config, config.Validate()
}

func (config *Config) applyEnv() error {
	var errs error

	if err := envInt("KIBITZ_PORT", &config.Port); err != nil {
		errs = multierror.Append(errs, err)
	}

	envString("KIBITZ_WEBSOCKET", &config.WebSocket)

	if err := envInt("KIBITZ_PEER_PORT", &config.Peer.Port); err != nil {
		errs = multierror.Append(errs, err)
	}

	if value := os.Getenv("KIBITZ_PEER_TIMEOUT"); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			errs = multierror.Append(errs, pkgerrors.Wrap(err, "config: KIBITZ_PEER_TIMEOUT"))
		} else {
			config.Peer.Timeout = timeout
		}
	}

	envString("KIBITZ_ENGINE", &config.Engine.Cmd)
	envString("KIBITZ_LOG_LEVEL", &config.LogLevel)
	return errs
}

func envString(key string, value *string) {
	if env := os.Getenv(key); env != "" {
		*value = env
	}
}

func envInt(key string, value *int) error {
	env := os.Getenv(key)
	if env == "" {
		return nil
	}

	n, err := strconv.Atoi(env)
	if err != nil {
		return pkgerrors.Wrapf(err, "config: %s", key)
	}

	*value = n
	return nil
}

// Validate reports every invalid setting.
func (config Config) Validate() error {
	var errs error

	if err := ValidPort(config.Port); config.Port != 0 && err != nil {
		errs = multierror.Append(errs, pkgerrors.WithMessage(err, "port"))
	}

	if err := ValidPort(config.Peer.Port); err != nil {
		errs = multierror.Append(errs, pkgerrors.WithMessage(err, "peer.port"))
	}

	if config.Peer.Timeout < 0 {
		errs = multierror.Append(errs, pkgerrors.Errorf("peer.timeout: negative duration %s", config.Peer.Timeout))
	}

	if config.Engine.MoveTime < 0 {
		errs = multierror.Append(errs, pkgerrors.Errorf("engine.movetime: negative duration %s", config.Engine.MoveTime))
	}

	if _, err := config.Level(); err != nil {
		errs = multierror.Append(errs, pkgerrors.WithMessage(err, "log-level"))
	}

	return errs
}

// ValidPort checks that port is a usable TCP port number.
func ValidPort(port int) error {
	if port < 1 || port > 65535 {
		return pkgerrors.Errorf("port %d is not in 1..65535", port)
	}

	return nil
}

// Level is the logrus level named by LogLevel.
func (config Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(config.LogLevel)
}
