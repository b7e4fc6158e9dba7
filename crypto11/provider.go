package crypto11

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/pkcs11uri/cryptoprov"
	"github.com/effective-security/pkcs11uri/uri"
)

// LoadFromConfig loads the module of the token configuration,
// and returns it with the URI of the configured token
func LoadFromConfig(cfg cryptoprov.TokenConfig, opts ...Option) (*Module, *uri.URI, error) {
	if cfg.Path() == "" {
		return nil, nil, errors.New("token configuration does not specify module path")
	}
	u, err := cryptoprov.TokenURI(cfg)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "invalid token configuration")
	}
	m, err := Load(cfg.Path(), opts...)
	if err != nil {
		return nil, nil, err
	}
	return m, u, nil
}

// OpenToken opens a session on the first slot matching the URI,
// and logs in when the URI or pin specify a PIN.
// An empty pin means the PIN is resolved from the URI.
func (m *Module) OpenToken(u *uri.URI, pin string) (*Session, *SlotTokenInfo, error) {
	slots, err := m.MatchingSlots(u, true)
	if err != nil {
		return nil, nil, err
	}
	if len(slots) == 0 {
		return nil, nil, errors.Errorf("no token matches %s", u.Redacted())
	}
	slot := slots[0]

	if pin == "" {
		pin, _, err = ResolvePin(u)
		if err != nil {
			return nil, nil, err
		}
	}

	s, err := m.OpenSession(slot.SlotID, false)
	if err != nil {
		return nil, nil, err
	}
	if pin != "" {
		if err = s.Login(pin); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
	}
	return s, slot, nil
}
