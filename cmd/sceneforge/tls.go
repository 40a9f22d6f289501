// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	cryptotls "crypto/tls"

	"github.com/sceneforge/sceneforge/internal/config"
	sftls "github.com/sceneforge/sceneforge/internal/tls"
	"github.com/sceneforge/sceneforge/internal/xdg"
)

func certsDir(cfg config.TLS) string {
	if cfg.Dir != "" {
		return cfg.Dir
	}
	return xdg.CertsDir()
}

// serverTLS returns the listener TLS config, or nil when TLS is off.
func serverTLS(cfg config.TLS) (*cryptotls.Config, error) {
	switch {
	case cfg.CertFile != "":
		return sftls.ServerConfig(cfg.CertFile, cfg.KeyFile)
	case cfg.SelfSigned:
		return sftls.SelfSigned(certsDir(cfg), cfg.Hosts)
	default:
		return nil, nil
	}
}

// clientTLS returns the config local clients use to reach the server, or
// nil for the system defaults.
func clientTLS(cfg config.TLS) *cryptotls.Config {
	if !cfg.SelfSigned {
		return nil
	}
	tlsCfg, err := sftls.ClientConfig(certsDir(cfg))
	if err != nil {
		return nil
	}
	return tlsCfg
}

func listenScheme(cfg config.TLS) string {
	if cfg.Enabled() {
		return "https://"
	}
	return "http://"
}
