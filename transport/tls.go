package transport

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/involk-secure-1609/lant/common"
	"github.com/pkg/errors"
)

// Protocol is the ALPN name both ends negotiate.
const Protocol = "lant"

// ServerTLSConfig loads certFile/keyFile, or generates a self-signed certificate when both are empty.
func ServerTLSConfig(certFile string, keyFile string, logger common.Logger) (*tls.Config, error) {
	if certFile == "" && keyFile == "" {
		logger.Warningf("no certificate configured, serving a self-signed one")
		return SelfSignedTLSConfig("localhost")
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "ServerTLSConfig failed to load key pair")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{Protocol},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// SelfSignedCertificate returns a PEM encoded certificate and key valid for hosts and the loopback addresses.
func SelfSignedCertificate(hosts ...string) ([]byte, []byte, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, errors.Wrap(err, "generate key")
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, nil, errors.Wrap(err, "serial")
	}

	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: Protocol},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create cert")
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	return certPEM, keyPEM, nil
}

// SelfSignedTLSConfig generates a throwaway certificate for hosts.
func SelfSignedTLSConfig(hosts ...string) (*tls.Config, error) {
	certPEM, keyPEM, err := SelfSignedCertificate(hosts...)
	if err != nil {
		return nil, err
	}
	return KeyPairTLSConfig(certPEM, keyPEM)
}

// KeyPairTLSConfig builds a server config from PEM blocks.
func KeyPairTLSConfig(certPEM []byte, keyPEM []byte) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "tls key pair")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{Protocol},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ClientTLSConfig trusts the certificates in caFile. With no caFile the server certificate
// is not verified at all.
func ClientTLSConfig(caFile string, logger common.Logger) (*tls.Config, error) {
	if caFile == "" {
		logger.Warningf("no ca file configured, the server certificate will not be verified")
		return &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{Protocol},
			MinVersion:         tls.VersionTLS13,
		}, nil
	}
	rootCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, errors.Wrap(err, "ClientTLSConfig failed to ReadFile")
	}
	return PinnedTLSConfig(rootCert)
}

// PinnedTLSConfig trusts only the PEM certificates in rootCert.
func PinnedTLSConfig(rootCert []byte) (*tls.Config, error) {
	roots := x509.NewCertPool()
	if ok := roots.AppendCertsFromPEM(rootCert); !ok {
		return nil, errors.New("failed to parse root certificate")
	}
	return &tls.Config{
		RootCAs:    roots,
		NextProtos: []string{Protocol},
		MinVersion: tls.VersionTLS13,
	}, nil
}
