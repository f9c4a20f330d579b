/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config loads config.ini, the on-disk configuration surface for
// the Gate, Status, and Chat binaries, into a typed Config using
// gopkg.in/ini.v1.
package config

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"gopkg.in/ini.v1"
)

type GateServer struct {
	Port int
}

type VarifyServer struct {
	Host string
	Port int
}

type StatusServer struct {
	Host string
	Port int
}

type Mysql struct {
	Host   string
	Port   int
	User   string
	Passwd string
	Schema string
}

type SelfServer struct {
	Name string
	Host string
	Port int
}

// RPC carries the NATS connection this module uses as its RPC transport
// between the Gate, Status, and Chat processes.
type RPC struct {
	URL      string
	PoolSize int
}

// SessionCache carries the embedded nutsdb directory backing the shared
// uid -> owning-instance lookup.
type SessionCache struct {
	Dir string
}

// Metrics carries the listen port for the Status and Chat binaries' small
// /metrics HTTP endpoint. The Gate binary instead mounts /metrics directly
// on its own HTTP engine, since it already listens on GateServer.Port.
type Metrics struct {
	Port int
}

type PeerServer struct {
	// Servers is the comma-separated list of peer chat-instance names.
	Servers []string
}

// ChatServer carries chat-instance settings, including the offline-message
// persistence policy.
type ChatServer struct {
	PersistOffline bool
	PoolSize       int
	IOLoops        int
	MaxFrameBody   int
}

type Config struct {
	GateServer   GateServer
	VarifyServer VarifyServer
	StatusServer StatusServer
	Mysql        Mysql
	SelfServer   SelfServer
	PeerServer   PeerServer
	ChatServer   ChatServer
	RPC          RPC
	SessionCache SessionCache
	Metrics      Metrics
}

// defaults mirrors the suggested operating values (8KiB max frame body,
// offline persistence on, pool and I/O-loop sizes, metrics port).
func defaults() Config {
	return Config{
		ChatServer: ChatServer{
			PersistOffline: true,
			PoolSize:       8,
			IOLoops:        4,
			MaxFrameBody:   8192,
		},
		RPC: RPC{
			URL:      nats.DefaultURL,
			PoolSize: 4,
		},
		SessionCache: SessionCache{
			Dir: "./data/sessioncache",
		},
		Metrics: Metrics{
			Port: 9100,
		},
	}
}

// Load reads path (config.ini by convention) and returns the populated
// Config. Missing optional sections keep their zero/default value.
func Load(path string) (Config, error) {
	cfg := defaults()

	f, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("config: load %s: %w", path, err)
	}

	if s := f.Section("GateServer"); s != nil {
		cfg.GateServer.Port = s.Key("Port").MustInt(cfg.GateServer.Port)
	}
	if s := f.Section("VarifyServer"); s != nil {
		cfg.VarifyServer.Host = s.Key("Host").MustString(cfg.VarifyServer.Host)
		cfg.VarifyServer.Port = s.Key("Port").MustInt(cfg.VarifyServer.Port)
	}
	if s := f.Section("StatusServer"); s != nil {
		cfg.StatusServer.Host = s.Key("Host").MustString(cfg.StatusServer.Host)
		cfg.StatusServer.Port = s.Key("Port").MustInt(cfg.StatusServer.Port)
	}
	if s := f.Section("Mysql"); s != nil {
		cfg.Mysql.Host = s.Key("Host").MustString(cfg.Mysql.Host)
		cfg.Mysql.Port = s.Key("Port").MustInt(3306)
		cfg.Mysql.User = s.Key("User").MustString(cfg.Mysql.User)
		cfg.Mysql.Passwd = s.Key("Passwd").MustString(cfg.Mysql.Passwd)
		cfg.Mysql.Schema = s.Key("Schema").MustString(cfg.Mysql.Schema)
	}
	if s := f.Section("SelfServer"); s != nil {
		cfg.SelfServer.Name = s.Key("Name").MustString(cfg.SelfServer.Name)
		cfg.SelfServer.Host = s.Key("Host").MustString(cfg.SelfServer.Host)
		cfg.SelfServer.Port = s.Key("Port").MustInt(cfg.SelfServer.Port)
	}
	if s := f.Section("PeerServer"); s != nil {
		raw := s.Key("Servers").MustString("")
		cfg.PeerServer.Servers = splitNonEmpty(raw)
	}
	if s := f.Section("ChatServer"); s != nil {
		cfg.ChatServer.PersistOffline = s.Key("PersistOffline").MustBool(cfg.ChatServer.PersistOffline)
		cfg.ChatServer.PoolSize = s.Key("PoolSize").MustInt(cfg.ChatServer.PoolSize)
		cfg.ChatServer.IOLoops = s.Key("IOLoops").MustInt(cfg.ChatServer.IOLoops)
		cfg.ChatServer.MaxFrameBody = s.Key("MaxFrameBody").MustInt(cfg.ChatServer.MaxFrameBody)
	}
	if s := f.Section("RPC"); s != nil {
		cfg.RPC.URL = s.Key("URL").MustString(cfg.RPC.URL)
		cfg.RPC.PoolSize = s.Key("PoolSize").MustInt(cfg.RPC.PoolSize)
	}
	if s := f.Section("SessionCache"); s != nil {
		cfg.SessionCache.Dir = s.Key("Dir").MustString(cfg.SessionCache.Dir)
	}
	if s := f.Section("Metrics"); s != nil {
		cfg.Metrics.Port = s.Key("Port").MustInt(cfg.Metrics.Port)
	}

	return cfg, nil
}

// DSN builds a MySQL DSN for gorm.io/driver/mysql from the Mysql section.
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Mysql.User, c.Mysql.Passwd, c.Mysql.Host, c.Mysql.Port, c.Mysql.Schema)
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
