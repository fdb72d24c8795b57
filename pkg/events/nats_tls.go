/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package events

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
)

var (
	// ErrCAParsingFailed is returned when the CA file holds no usable certificate.
	ErrCAParsingFailed   = errors.New("failed to parse CA certificate")
	errIncompleteKeyPair = errors.New("tls cert_file and key_file must be set together")
)

// NATSTLSConfig enables TLS, and mTLS when a client key pair is given.
type NATSTLSConfig struct {
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
	CAFile     string `json:"ca_file,omitempty"`
	ServerName string `json:"server_name,omitempty"`
}

func (c *NATSTLSConfig) tlsConfig() (*tls.Config, error) {
	out := &tls.Config{
		ServerName: c.ServerName,
		MinVersion: tls.VersionTLS13,
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return nil, errIncompleteKeyPair
	}

	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		out.Certificates = []tls.Certificate{cert}
	}

	if c.CAFile != "" {
		caCert, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, ErrCAParsingFailed
		}

		out.RootCAs = caPool
	}

	return out, nil
}

// connectOptions translates the security settings into nats options.
func (c *NATSConfig) connectOptions() ([]nats.Option, error) {
	var opts []nats.Option

	if c.TLS != nil {
		tlsCfg, err := c.TLS.tlsConfig()
		if err != nil {
			return nil, err
		}

		opts = append(opts, nats.Secure(tlsCfg))
	}

	if c.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(c.CredsFile))
	}

	return opts, nil
}
