package crypto11

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/pkcs11uri/attribute"
	"github.com/effective-security/pkcs11uri/metricskey"
	"github.com/effective-security/pkcs11uri/uri"
	"github.com/effective-security/xlog"
	"github.com/miekg/pkcs11"
)

const findObjectsBatch = 64

// Session is an open session on a slot.
// Close must be called when the session is no longer needed.
type Session struct {
	module   *Module
	slotID   uint
	handle   pkcs11.SessionHandle
	loggedIn bool

	closeOnce sync.Once
	closeErr  error
}

// OpenSession opens a session on the slot
func (m *Module) OpenSession(slotID uint, rw bool) (*Session, error) {
	defer metricskey.PerfModuleOperation.MeasureSince(time.Now(), "open_session")

	flags := uint(pkcs11.CKF_SERIAL_SESSION)
	if rw {
		flags |= pkcs11.CKF_RW_SESSION
	}
	sh, err := m.ctx.OpenSession(slotID, flags)
	if err != nil {
		return nil, errors.WithMessagef(err, "OpenSession on slot %d", slotID)
	}
	logger.KV(xlog.TRACE, "slotID", slotID, "session", sh)

	return &Session{
		module: m,
		slotID: slotID,
		handle: sh,
	}, nil
}

// SlotID returns the slot of the session
func (s *Session) SlotID() uint {
	return s.slotID
}

// Close logs out and closes the session; it is safe to call more than once
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.loggedIn {
			if err := s.module.ctx.Logout(s.handle); err != nil {
				logger.KV(xlog.WARNING, "reason", "Logout", "slotID", s.slotID, "err", err)
			}
		}
		if err := s.module.ctx.CloseSession(s.handle); err != nil {
			s.closeErr = errors.WithMessagef(err, "CloseSession on slot %d", s.slotID)
		}
	})
	return s.closeErr
}

// Login authenticates the session as the normal user
func (s *Session) Login(pin string) error {
	defer metricskey.PerfModuleOperation.MeasureSince(time.Now(), "login")

	err := s.module.ctx.Login(s.handle, pkcs11.CKU_USER, pin)
	if err != nil {
		if !isError(err, pkcs11.CKR_USER_ALREADY_LOGGED_IN) {
			return errors.WithMessagef(err, "Login on slot %d", s.slotID)
		}
		logger.KV(xlog.DEBUG, "reason", "already_logged_in", "slotID", s.slotID)
		return nil
	}
	s.loggedIn = true
	return nil
}

// ObjectTemplate returns the search template for the object attributes of the URI
func (s *Session) ObjectTemplate(u *uri.URI) ([]*pkcs11.Attribute, error) {
	var attrs []attribute.Attribute
	if t, ok := u.Type(); ok {
		attrs = append(attrs, attribute.New(pkcs11.CKA_CLASS, attribute.ULong(uint64(t))))
	}
	if label, ok := u.Object(); ok {
		attrs = append(attrs, attribute.New(pkcs11.CKA_LABEL, attribute.String(label)))
	}
	if id, ok := u.ID(); ok {
		attrs = append(attrs, attribute.New(pkcs11.CKA_ID, attribute.Bytes(id)))
	}
	return s.module.platform.Template(attrs...)
}

// FindObjects returns the handles of the objects identified by the URI.
// A URI with vendor path attributes identifies no objects.
func (s *Session) FindObjects(u *uri.URI) ([]pkcs11.ObjectHandle, error) {
	defer metricskey.PerfURIMatch.MeasureSince(time.Now(), "objects")

	if u.HasVendorPathAttributes() {
		logger.KV(xlog.DEBUG, "reason", "vendor_attributes", "uri", u.Redacted())
		return nil, nil
	}

	template, err := s.ObjectTemplate(u)
	if err != nil {
		return nil, err
	}

	ctx := s.module.ctx
	if err = ctx.FindObjectsInit(s.handle, template); err != nil {
		return nil, errors.WithMessage(err, "FindObjectsInit")
	}

	var found []pkcs11.ObjectHandle
	for {
		handles, _, err := ctx.FindObjects(s.handle, findObjectsBatch)
		if err != nil {
			_ = ctx.FindObjectsFinal(s.handle)
			return nil, errors.WithMessage(err, "FindObjects")
		}
		if len(handles) == 0 {
			break
		}
		found = append(found, handles...)
	}
	if err = ctx.FindObjectsFinal(s.handle); err != nil {
		return nil, errors.WithMessage(err, "FindObjectsFinal")
	}

	var res []pkcs11.ObjectHandle
	for _, h := range found {
		info, err := s.ObjectInfo(h)
		if err != nil {
			return nil, err
		}
		if uri.MatchesObject(u, info) {
			res = append(res, h)
		}
	}

	logger.KV(xlog.DEBUG, "slotID", s.slotID, "found", len(found), "matched", len(res))
	return res, nil
}

// ObjectInfo returns the class, label and id of the object.
// Attributes the object does not expose are left nil.
func (s *Session) ObjectInfo(h pkcs11.ObjectHandle) (uri.ObjectInfo, error) {
	var info uri.ObjectInfo

	v, ok, err := s.ReadValue(h, pkcs11.CKA_CLASS, attribute.KindULong)
	if err != nil {
		return info, err
	}
	if ok {
		class, _ := v.AsULong()
		t := uri.ObjectType(class)
		info.Class = &t
	}

	if v, ok, err = s.ReadValue(h, pkcs11.CKA_LABEL, attribute.KindString); err != nil {
		return info, err
	}
	if ok {
		label, _ := v.AsString()
		info.Label = &label
	}

	if v, ok, err = s.ReadValue(h, pkcs11.CKA_ID, attribute.KindBytes); err != nil {
		return info, err
	}
	if ok {
		info.ID, _ = v.AsBytes()
		if info.ID == nil {
			info.ID = []byte{}
		}
	}
	return info, nil
}

// ReadValue reads a single attribute and decodes it as kind.
// The boolean result is false when the attribute is sensitive or not
// defined for the object.
func (s *Session) ReadValue(h pkcs11.ObjectHandle, typ uint, kind attribute.Kind) (attribute.Value, bool, error) {
	r, err := s.ReadAttribute(h, typ)
	if err != nil || !r.OK() {
		return attribute.Value{}, false, err
	}
	a, err := s.module.platform.Decode(kind, &pkcs11.Attribute{Type: typ, Value: r.Raw})
	if err != nil {
		return attribute.Value{}, false, err
	}
	return a.Value, true, nil
}

// ReadAttribute reads a single attribute of the object.
// Sensitive and missing attributes are reported in the result, not as errors.
func (s *Session) ReadAttribute(h pkcs11.ObjectHandle, typ uint) (attribute.ReadResult, error) {
	attrs, err := s.module.ctx.GetAttributeValue(s.handle, h, []*pkcs11.Attribute{
		pkcs11.NewAttribute(typ, nil),
	})
	if err != nil {
		res, err := attribute.ClassifyReadError(typ, err)
		if err != nil {
			return res, errors.WithMessagef(err, "GetAttributeValue 0x%X", typ)
		}
		logger.KV(xlog.TRACE, "object", h, "attribute", typ, "status", res.Status)
		return res, nil
	}
	if len(attrs) != 1 {
		return attribute.ReadResult{Type: typ}, errors.Errorf("GetAttributeValue 0x%X: expected 1 attribute, got %d", typ, len(attrs))
	}
	return attribute.ReadResult{Type: typ, Status: attribute.ReadOK, Raw: attrs[0].Value}, nil
}
