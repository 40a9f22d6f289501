// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package tls

import (
	cryptotls "crypto/tls"
	"crypto/x509"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/xdg"
)

// DefaultHosts are the names a self-signed certificate is issued for when
// none are configured.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// ServerConfig loads a PEM certificate and key pair.
func ServerConfig(certFile, keyFile string) (*cryptotls.Config, error) {
	pair, err := cryptotls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, oops.Code(CodeCertificate).
			With("cert_file", certFile).
			With("key_file", keyFile).
			Wrapf(err, "load key pair")
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{pair},
		MinVersion:   cryptotls.VersionTLS12,
	}, nil
}

// SelfSigned returns a server config backed by the CA and certificate in
// dir, generating both on first use.
func SelfSigned(dir string, hosts []string) (*cryptotls.Config, error) {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	certFile := filepath.Join(dir, ServerFile)
	keyFile := filepath.Join(dir, ServerKeyFile)
	if xdg.Exists(certFile) && xdg.Exists(keyFile) {
		return ServerConfig(certFile, keyFile)
	}

	ca, err := LoadCA(dir)
	if err != nil {
		if ca, err = GenerateCA(hostname()); err != nil {
			return nil, err
		}
	}
	server, err := GenerateServerCert(ca, hosts)
	if err != nil {
		return nil, err
	}
	if err := SaveCertificates(dir, ca, server); err != nil {
		return nil, err
	}
	slog.Info("generated self-signed certificate", "dir", dir, "hosts", hosts)
	return ServerConfig(certFile, keyFile)
}

// ClientConfig trusts the CA saved in dir.
func ClientConfig(dir string) (*cryptotls.Config, error) {
	ca, err := LoadCA(dir)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(ca.Certificate)
	return &cryptotls.Config{RootCAs: pool, MinVersion: cryptotls.VersionTLS12}, nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "local"
	}
	return name
}
