/*
 * Copyright (c) 2026, Psiphon Inc.
 * All rights reserved.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package proxyutil

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/Psiphon-Labs/tlstransport/common"
)

func TestRequiresHTTPTunnel(t *testing.T) {

	httpProxy, _ := url.Parse("http://proxy.example.org:8080")
	httpsProxy, _ := url.Parse("https://proxy.example.org:8443")

	testCases := []struct {
		description           string
		proxyURL              *url.URL
		destinationScheme     string
		useForwardingForHTTPS bool
		expected              bool
	}{
		{"no proxy", nil, "https", false, false},
		{"http destination via http proxy", httpProxy, "http", false, false},
		{"http destination via https proxy", httpsProxy, "http", false, false},
		{"https destination via http proxy", httpProxy, "https", false, true},
		{"https destination via https proxy", httpsProxy, "https", false, true},
		{"https forwarding via https proxy", httpsProxy, "https", true, false},
		{"https forwarding via http proxy", httpProxy, "https", true, true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			tunnel := RequiresHTTPTunnel(
				testCase.proxyURL,
				testCase.destinationScheme,
				testCase.useForwardingForHTTPS)
			if tunnel != testCase.expected {
				t.Errorf("unexpected result: %v", tunnel)
			}
		})
	}
}

func TestClientCertificateFromEnvironment(t *testing.T) {

	t.Setenv("PROXY_SSLCERT", "")
	t.Setenv("PROXY_SSLKEY", "")

	_, _, ok := ClientCertificateFromEnvironment()
	if ok {
		t.Fatalf("unexpected certificate configuration")
	}

	certificate, err := LoadClientCertificateFromEnvironment()
	if err != nil {
		t.Fatalf("LoadClientCertificateFromEnvironment failed: %s", err)
	}
	if certificate != nil {
		t.Fatalf("unexpected certificate")
	}

	certificatePEM, privateKeyPEM, err := common.GenerateTransportCertificate("localhost")
	if err != nil {
		t.Fatalf("GenerateTransportCertificate failed: %s", err)
	}

	certificateFile := filepath.Join(t.TempDir(), "cert.pem")
	keyFile := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(certificateFile, []byte(certificatePEM), 0600); err != nil {
		t.Fatalf("WriteFile failed: %s", err)
	}
	if err := os.WriteFile(keyFile, []byte(privateKeyPEM), 0600); err != nil {
		t.Fatalf("WriteFile failed: %s", err)
	}

	t.Setenv("PROXY_SSLCERT", certificateFile)
	t.Setenv("PROXY_SSLKEY", keyFile)

	configuredCert, configuredKey, ok := ClientCertificateFromEnvironment()
	if !ok {
		t.Fatalf("expected certificate configuration")
	}
	if configuredCert != certificateFile || configuredKey != keyFile {
		t.Fatalf("unexpected file names: %s, %s", configuredCert, configuredKey)
	}

	certificate, err = LoadClientCertificateFromEnvironment()
	if err != nil {
		t.Fatalf("LoadClientCertificateFromEnvironment failed: %s", err)
	}
	if certificate == nil {
		t.Fatalf("missing certificate")
	}
}
