package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/effective-security/pkcs11uri/crypto11"
	"github.com/effective-security/pkcs11uri/crypto11/p11test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnexpectedArgument(t *testing.T) {
	out := bytes.NewBuffer([]byte{})
	errout := bytes.NewBuffer([]byte{})
	rc := 0
	exit := func(c int) {
		rc = c
	}

	realMain([]string{"p11uri-tool", "version"}, out, errout, exit)
	assert.Equal(t, 80, rc)
	assert.Equal(t, "p11uri-tool: error: unexpected argument version\n", errout.String())
	assert.Empty(t, out.String())
}

func TestParse(t *testing.T) {
	out := bytes.NewBuffer([]byte{})
	errout := bytes.NewBuffer([]byte{})
	rc := 0
	exit := func(c int) {
		rc = c
	}

	realMain([]string{"p11uri-tool", "uri", "parse", "pkcs11:token=Token%201;type=cert"}, out, errout, exit)
	assert.Equal(t, 0, rc)
	assert.Contains(t, out.String(), "Token 1")
	assert.Contains(t, out.String(), "cert")
	assert.Empty(t, errout.String())
}

func TestBuild(t *testing.T) {
	out := bytes.NewBuffer([]byte{})
	errout := bytes.NewBuffer([]byte{})
	rc := 0
	exit := func(c int) {
		rc = c
	}

	realMain([]string{"p11uri-tool", "uri", "build", "--token=", "--object=key", "--type=private"}, out, errout, exit)
	assert.Equal(t, 0, rc)
	assert.Equal(t, "pkcs11:token=;object=key;type=private\n", out.String())
	assert.Empty(t, errout.String())
}

func TestSlots(t *testing.T) {
	saved := crypto11.NewCtx
	c := p11test.Default()
	crypto11.NewCtx = func(string) crypto11.Ctx { return c }
	defer func() { crypto11.NewCtx = saved }()

	lib := filepath.Join(t.TempDir(), "libsofthsm2.so")
	require.NoError(t, os.WriteFile(lib, []byte("ELF"), 0644))

	out := bytes.NewBuffer([]byte{})
	errout := bytes.NewBuffer([]byte{})
	rc := 0
	exit := func(c int) {
		rc = c
	}

	realMain([]string{"p11uri-tool", "slots", "pkcs11:token=xpki-unittest?module-path=" + lib}, out, errout, exit)
	assert.Equal(t, 0, rc)
	assert.Contains(t, out.String(), "5f4a3c2b1a090807")
	assert.NotContains(t, out.String(), "00000000000000aa")
	// the module is released on exit
	assert.True(t, c.Destroyed())
}
