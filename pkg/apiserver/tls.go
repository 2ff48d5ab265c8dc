package apiserver

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

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
)

// TLSMode selects one of the three modes from spec.md §6.
type TLSMode string

const (
	TLSDisabled     TLSMode = "disabled"
	TLSAutoGenerate TLSMode = "autogenerate"
	TLSProvided     TLSMode = "provided"
)

// certLifetime is how long an AutoGenerate CA/server cert is valid before
// needing regeneration; since the pair is reused across restarts rather
// than rotated, this is generous.
const certLifetime = 10 * 365 * 24 * time.Hour

// TLSConfig describes how the server should terminate TLS.
type TLSConfig struct {
	Mode TLSMode

	// Provided mode.
	CertPath string
	KeyPath  string

	// AutoGenerate mode: material is persisted under
	// {parent(DataDir)}/tls/{ca,server,server-key}.pem and reused across
	// restarts (spec.md §6).
	DataDir string
	SANs    []string
}

// Materialize returns the server cert/key file paths to hand to
// ListenAndServeTLS, generating and persisting a self-signed CA and
// server certificate on first run in AutoGenerate mode.
func (c *TLSConfig) Materialize() (certPath, keyPath string, err error) {
	switch c.Mode {
	case TLSProvided:
		if c.CertPath == "" || c.KeyPath == "" {
			return "", "", apierrors.BadRequest("tls: --tls-cert and --tls-key are required in provided mode")
		}
		return c.CertPath, c.KeyPath, nil
	case TLSAutoGenerate:
		return c.autoGenerate()
	default:
		return "", "", apierrors.BadRequest("tls: Materialize called with mode " + string(c.Mode))
	}
}

// CAPath returns the path internal clients should be handed for trust, in
// AutoGenerate mode.
func (c *TLSConfig) CAPath() string {
	return filepath.Join(c.tlsDir(), "ca.pem")
}

func (c *TLSConfig) tlsDir() string {
	return filepath.Join(filepath.Dir(filepath.Clean(c.DataDir)), "tls")
}

func (c *TLSConfig) autoGenerate() (certPath, keyPath string, err error) {
	dir := c.tlsDir()
	caPath := filepath.Join(dir, "ca.pem")
	serverPath := filepath.Join(dir, "server.pem")
	serverKeyPath := filepath.Join(dir, "server-key.pem")

	if fileExists(caPath) && fileExists(serverPath) && fileExists(serverKeyPath) {
		return serverPath, serverKeyPath, nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", apierrors.Internalf("tls: create %s: %v", dir, err)
	}

	caKey, caCert, err := generateCA()
	if err != nil {
		return "", "", err
	}
	serverKey, serverCert, err := generateServerCert(caKey, caCert, c.SANs)
	if err != nil {
		return "", "", err
	}

	if err := writePEM(caPath, "CERTIFICATE", caCert.Raw); err != nil {
		return "", "", err
	}
	if err := writePEM(serverPath, "CERTIFICATE", serverCert.Raw); err != nil {
		return "", "", err
	}
	keyBytes, err := x509.MarshalECPrivateKey(serverKey)
	if err != nil {
		return "", "", apierrors.Internalf("tls: marshal server key: %v", err)
	}
	if err := writePEM(serverKeyPath, "EC PRIVATE KEY", keyBytes); err != nil {
		return "", "", err
	}

	return serverPath, serverKeyPath, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return apierrors.Internalf("tls: open %s: %v", path, err)
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}

func generateCA() (*ecdsa.PrivateKey, *x509.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, apierrors.Internalf("tls: generate CA key: %v", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, apierrors.Internalf("tls: generate CA serial: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "reddwarf-ca"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(certLifetime),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, apierrors.Internalf("tls: create CA certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, apierrors.Internalf("tls: parse CA certificate: %v", err)
	}
	return key, cert, nil
}

func generateServerCert(caKey *ecdsa.PrivateKey, caCert *x509.Certificate, sans []string) (*ecdsa.PrivateKey, *x509.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, apierrors.Internalf("tls: generate server key: %v", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, apierrors.Internalf("tls: generate server serial: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "reddwarf"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(certLifetime),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, san := range sans {
		if ip := net.ParseIP(san); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, san)
		}
	}
	if len(sans) == 0 {
		tmpl.DNSNames = []string{"localhost"}
		tmpl.IPAddresses = []net.IP{net.ParseIP("127.0.0.1")}
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &key.PublicKey, caKey)
	if err != nil {
		return nil, nil, apierrors.Internalf("tls: create server certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, apierrors.Internalf("tls: parse server certificate: %v", err)
	}
	return key, cert, nil
}
