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

package config

import (
	"encoding/json"
	"io/ioutil"
	"reflect"
	"regexp"
	"strings"

	"github.com/bfix/gospel/logger"
)

///////////////////////////////////////////////////////////////////////
// Edge listener configuration

// ListenerConfig controls the UDP edge listener for one local node.
type ListenerConfig struct {
	Port             int      `json:"port"`                // UDP port to bind
	LocalTAs         []string `json:"localTAs"`             // advertised transport addresses
	TAAuthorizer     string   `json:"taAuthorizer"`         // "any" or "seed-only"
	SendQueueSoftCap int      `json:"sendQueueSoftCap"`     // bounded send-queue capacity
	EnableUPnP       bool     `json:"enableUPnP"`           // attempt automatic port mapping
	NATJournal       string   `json:"natJournal"`           // sqlite3 path, empty disables
}

///////////////////////////////////////////////////////////////////////
// Routing configuration

// RoutingConfig controls next-hop routing and the shortcut/estimator.
type RoutingConfig struct {
	MaxTTL              int `json:"maxTTL"`              // packet hop bound
	MaxUphillHops        int `json:"maxUphillHops"`       // annealing uphill budget
	MaxNeighborsInStatus int `json:"maxNeighborsInStatus"` // neighbor count per status push
}

///////////////////////////////////////////////////////////////////////
// Status-exchange / diagnostics configuration

// StatusConfig controls the RPC push endpoint and diagnostics server.
type StatusConfig struct {
	Endpoint string `json:"endpoint"` // address the RPC+diagnostics HTTP server binds
}

///////////////////////////////////////////////////////////////////////
// Bootstrap / peer-discovery configuration

// BootstrapConfig controls DNS-seed peer discovery.
type BootstrapConfig struct {
	SeedZone   string `json:"seedZone"`   // DNS zone carrying ta= TXT records
	SeedServer string `json:"seedServer"` // resolver IP, empty for the default
}

// PeerbookConfig selects the propose-peer cache backend.
type PeerbookConfig struct {
	Spec string `json:"spec"` // "mem" or "redis+addr+passwd+db"
}

///////////////////////////////////////////////////////////////////////

// Environment settings
type Environ map[string]string

// Config is the aggregated configuration for a ringnet node.
type Config struct {
	Env       Environ          `json:"environ"`
	Listener  *ListenerConfig  `json:"listener"`
	Routing   *RoutingConfig   `json:"routing"`
	Status    *StatusConfig    `json:"status"`
	Bootstrap *BootstrapConfig `json:"bootstrap"`
	Peerbook  *PeerbookConfig  `json:"peerbook"`
}

// Default returns a Config populated with the spec's documented
// defaults, for use when no configuration file is supplied.
func Default() *Config {
	return &Config{
		Env: Environ{},
		Listener: &ListenerConfig{
			Port:             9100,
			TAAuthorizer:     "any",
			SendQueueSoftCap: 1024,
		},
		Routing: &RoutingConfig{
			MaxTTL:               30,
			MaxUphillHops:        1,
			MaxNeighborsInStatus: 4,
		},
		Status: &StatusConfig{
			Endpoint: "127.0.0.1:9101",
		},
		Bootstrap: &BootstrapConfig{},
		Peerbook: &PeerbookConfig{
			Spec: "mem",
		},
	}
}

var (
	// Cfg is the global configuration
	Cfg *Config
)

// Parse a JSON-encoded configuration file map it to the Config data structure.
func ParseConfig(fileName string) (err error) {
	// parse configuration file
	file, err := ioutil.ReadFile(fileName)
	if err != nil {
		return
	}
	// unmarshal to Config data structure
	Cfg = new(Config)
	if err = json.Unmarshal(file, Cfg); err == nil {
		// process all string-based config settings and apply
		// string substitutions.
		applySubstitutions(Cfg, Cfg.Env)
	}
	return
}

var (
	rx = regexp.MustCompile("\\$\\{([^\\}]*)\\}")
)

// substString is a helper function to substitute environment variables
// with actual values.
func substString(s string, env map[string]string) string {
	matches := rx.FindAllStringSubmatch(s, -1)
	for _, m := range matches {
		if len(m[1]) != 0 {
			subst, ok := env[m[1]]
			if !ok {
				continue
			}
			s = strings.Replace(s, "${"+m[1]+"}", subst, -1)
		}
	}
	return s
}

// applySubstitutions traverses the configuration data structure
// and applies string substitutions to all string values.
func applySubstitutions(x interface{}, env map[string]string) {

	var process func(v reflect.Value)
	process = func(v reflect.Value) {
		for i := 0; i < v.NumField(); i++ {
			fld := v.Field(i)
			if fld.CanSet() {
				switch fld.Kind() {
				case reflect.String:
					// check for substitution
					s := fld.Interface().(string)
					for {
						s1 := substString(s, env)
						if s1 == s {
							break
						}
						logger.Printf(logger.DBG, "[config] %s --> %s\n", s, s1)
						fld.SetString(s1)
						s = s1
					}

				case reflect.Struct:
					// handle nested struct
					process(fld)

				case reflect.Ptr:
					// handle pointer
					e := fld.Elem()
					if e.IsValid() {
						process(fld.Elem())
					} else {
						logger.Printf(logger.ERROR, "[config] 'nil' pointer encountered")
					}
				}
			}
		}
	}
	// start processing at the top-level structure
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Ptr:
		// indirect top-level
		e := v.Elem()
		if e.IsValid() {
			process(e)
		} else {
			logger.Printf(logger.ERROR, "[config] 'nil' pointer encountered")
		}
	case reflect.Struct:
		// direct top-level
		process(v)
	}
}
