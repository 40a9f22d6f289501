// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package tls generates and loads the certificates the document server
// uses to serve HTTPS and secure WebSocket connections.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/xdg"
)

// File names inside a certificates directory.
const (
	CAFile         = "root-ca.crt"
	CAKeyFile      = "root-ca.key"
	ServerFile     = "server.crt"
	ServerKeyFile  = "server.key"
	organization   = "SceneForge"
	caLifetime     = 10 * 365 * 24 * time.Hour
	serverLifetime = 365 * 24 * time.Hour
)

// CodeCertificate marks failures to create, store or read certificates.
const CodeCertificate = "TLS_CERTIFICATE"

// CA is a certificate authority with its private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// ServerCert is a leaf certificate with its private key.
type ServerCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// GenerateCA creates a self-signed root. name ends up in the common name.
func GenerateCA(name string) (*CA, error) {
	key, serial, err := newKey()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{organization}, CommonName: "SceneForge CA " + name},
		NotBefore:             now,
		NotAfter:              now.Add(caLifetime),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}
	cert, err := sign(template, template, key, key)
	if err != nil {
		return nil, err
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GenerateServerCert issues a server certificate for hosts, which may be
// DNS names or IP addresses.
func GenerateServerCert(ca *CA, hosts []string) (*ServerCert, error) {
	if len(hosts) == 0 {
		return nil, oops.Code(CodeCertificate).Errorf("at least one host is required")
	}
	key, serial, err := newKey()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{Organization: []string{organization}, CommonName: hosts[0]},
		NotBefore:    now,
		NotAfter:     now.Add(serverLifetime),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}
	cert, err := sign(template, ca.Certificate, key, ca.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &ServerCert{Certificate: cert, PrivateKey: key}, nil
}

// SaveCertificates writes the CA and, when non-nil, the server certificate
// to dir.
func SaveCertificates(dir string, ca *CA, server *ServerCert) error {
	if err := xdg.EnsureDir(dir); err != nil {
		return err
	}
	if err := saveCert(filepath.Join(dir, CAFile), ca.Certificate); err != nil {
		return err
	}
	if err := saveKey(filepath.Join(dir, CAKeyFile), ca.PrivateKey); err != nil {
		return err
	}
	if server == nil {
		return nil
	}
	if err := saveCert(filepath.Join(dir, ServerFile), server.Certificate); err != nil {
		return err
	}
	return saveKey(filepath.Join(dir, ServerKeyFile), server.PrivateKey)
}

// LoadCA reads the CA saved in dir.
func LoadCA(dir string) (*CA, error) {
	certPEM, err := readPEM(filepath.Join(dir, CAFile), "CERTIFICATE")
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(certPEM)
	if err != nil {
		return nil, oops.Code(CodeCertificate).With("dir", dir).Wrapf(err, "parse CA certificate")
	}
	keyPEM, err := readPEM(filepath.Join(dir, CAKeyFile), "EC PRIVATE KEY")
	if err != nil {
		return nil, err
	}
	key, err := x509.ParseECPrivateKey(keyPEM)
	if err != nil {
		return nil, oops.Code(CodeCertificate).With("dir", dir).Wrapf(err, "parse CA key")
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

func newKey() (*ecdsa.PrivateKey, *big.Int, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, oops.Code(CodeCertificate).Wrapf(err, "generate key")
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, oops.Code(CodeCertificate).Wrapf(err, "generate serial")
	}
	return key, serial, nil
}

func sign(template, parent *x509.Certificate, key, signer *ecdsa.PrivateKey) (*x509.Certificate, error) {
	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, signer)
	if err != nil {
		return nil, oops.Code(CodeCertificate).With("subject", template.Subject.CommonName).Wrapf(err, "create certificate")
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Code(CodeCertificate).Wrapf(err, "parse certificate")
	}
	return cert, nil
}

func saveCert(path string, cert *x509.Certificate) error {
	return writePEM(path, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}, 0o644)
}

func saveKey(path string, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code(CodeCertificate).With("path", path).Wrapf(err, "marshal key")
	}
	return writePEM(path, &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}, 0o600)
}

func writePEM(path string, block *pem.Block, perm os.FileMode) error {
	//nolint:gosec // path is built from the certificates directory
	if err := os.WriteFile(path, pem.EncodeToMemory(block), perm); err != nil {
		return oops.Code(CodeCertificate).With("path", path).Wrapf(err, "write %s", block.Type)
	}
	return nil
}

func readPEM(path, blockType string) ([]byte, error) {
	//nolint:gosec // path is built from the certificates directory
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code(CodeCertificate).With("path", path).Wrapf(err, "read %s", blockType)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != blockType {
		return nil, oops.Code(CodeCertificate).With("path", path).Errorf("no %s block", blockType)
	}
	return block.Bytes, nil
}
