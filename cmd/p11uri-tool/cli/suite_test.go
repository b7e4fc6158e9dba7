package cli

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/effective-security/pkcs11uri/crypto11"
	"github.com/effective-security/pkcs11uri/crypto11/p11test"
	"github.com/effective-security/x/ctl"
	"github.com/stretchr/testify/suite"
)

type testSuite struct {
	suite.Suite

	ctl *Cli
	// Out is the outpub buffer
	Out bytes.Buffer

	p11    *p11test.Ctx
	lib    string
	newCtx func(string) crypto11.Ctx
}

func (s *testSuite) SetupTest() {
	s.Out.Reset()
	s.ctl = &Cli{}

	s.ctl.WithErrWriter(&s.Out).
		WithWriter(&s.Out)

	parser, err := kong.New(s.ctl,
		kong.Name("p11uri-tool"),
		kong.Description("CLI tool for PKCS#11 URI"),
		kong.Writers(&s.Out, &s.Out),
		ctl.BoolPtrMapper,
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{})
	if err != nil {
		s.FailNow("unexpected error constructing Kong: %+v", err)
	}

	_, err = parser.Parse([]string{})
	if err != nil {
		s.FailNow("unexpected error parsing: %+v", err)
	}

	s.p11 = p11test.Default()
	s.newCtx = crypto11.NewCtx
	crypto11.NewCtx = func(string) crypto11.Ctx { return s.p11 }

	s.lib = filepath.Join(s.T().TempDir(), "libsofthsm2.so")
	s.Require().NoError(os.WriteFile(s.lib, []byte("ELF"), 0644))
}

func (s *testSuite) TearDownTest() {
	_ = s.ctl.Close()
	crypto11.NewCtx = s.newCtx
}

// HasText is a helper method to assert that the out stream contains the supplied
// text somewhere
func (s *testSuite) HasText(texts ...string) {
	outStr := s.Out.String()
	for _, t := range texts {
		s.Contains(outStr, t)
	}
}

// HasNoText is a helper method to assert that the out stream does not contain the supplied
// text anywhere
func (s *testSuite) HasNoText(texts ...string) {
	outStr := s.Out.String()
	for _, t := range texts {
		s.NotContains(outStr, t)
	}
}
