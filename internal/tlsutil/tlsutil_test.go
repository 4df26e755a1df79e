package tlsutil

import (
	"crypto/tls"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig_Defaults(t *testing.T) {
	cfg, err := ClientConfig("")
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.NotEmpty(t, cfg.CipherSuites)
	assert.Nil(t, cfg.RootCAs)
}

func TestClientConfig_CAFile(t *testing.T) {
	srv := httptest.NewTLSServer(nil)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "ca.pem")
	block := &pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw}
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	cfg, err := ClientConfig(path)
	require.NoError(t, err)
	assert.NotNil(t, cfg.RootCAs)

	tr, err := Transport(path)
	require.NoError(t, err)
	assert.NotNil(t, tr.TLSClientConfig.RootCAs)

	resp, err := (&http.Client{Transport: tr}).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestClientConfig_BadCAFile(t *testing.T) {
	_, err := ClientConfig(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "junk.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))
	_, err = Transport(path)
	assert.Error(t, err)
}
