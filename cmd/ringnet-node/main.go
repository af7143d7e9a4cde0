// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019, 2020 Bernd Fix  >Y<
//
// gnunet-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// gnunet-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bfix/gospel/logger"

	"github.com/bfix/ringnet/config"
	"github.com/bfix/ringnet/node"
	"github.com/bfix/ringnet/util"
)

func main() {
	defer func() {
		logger.Println(logger.INFO, "[ringnet] Bye.")
		logger.Flush()
	}()
	logger.Println(logger.INFO, "[ringnet] Starting node...")

	var (
		cfgFile  string
		port     int
		logLevel int
	)
	flag.StringVar(&cfgFile, "c", "", "ringnet configuration file (defaults built in if empty)")
	flag.IntVar(&port, "p", 0, "UDP port override (0 keeps the configured/default port)")
	flag.IntVar(&logLevel, "L", logger.INFO, "log level")
	flag.Parse()

	logger.SetLogLevel(logLevel)

	cfg := config.Default()
	if cfgFile != "" {
		if err := config.ParseConfig(cfgFile); err != nil {
			logger.Printf(logger.ERROR, "[ringnet] invalid configuration file: %s\n", err.Error())
			return
		}
		cfg = config.Cfg
	}
	if port != 0 {
		cfg.Listener.Port = port
	}

	n, err := node.New(cfg)
	if err != nil {
		logger.Printf(logger.ERROR, "[ringnet] failed to build node: %s\n", err.Error())
		return
	}
	logger.Printf(logger.INFO, "[ringnet] local address: %s\n", n.Local)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- n.Run(ctx) }()

	sigCh := make(chan os.Signal, 5)
	signal.Notify(sigCh)
	tick := time.NewTicker(5 * time.Minute)

	nodeStopped := false
loop:
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGKILL, syscall.SIGINT, syscall.SIGTERM:
				logger.Printf(logger.INFO, "[ringnet] terminating node (on signal '%s')\n", sig)
				break loop
			case syscall.SIGHUP:
				logger.Println(logger.INFO, "[ringnet] SIGHUP")
			default:
				logger.Println(logger.INFO, "[ringnet] unhandled signal: "+sig.String())
			}
		case now := <-tick.C:
			est := util.Scale1024(n.EstimateSize().Uint64())
			logger.Printf(logger.INFO, "[ringnet] heartbeat at %s, table size %d, estimated ring size %s\n", now, n.Table.Size(), est)
		case err := <-runDone:
			if err != nil {
				logger.Printf(logger.ERROR, "[ringnet] node stopped: %s\n", err.Error())
			}
			nodeStopped = true
			break loop
		}
	}

	cancel()
	if !nodeStopped {
		<-runDone
	}
}
