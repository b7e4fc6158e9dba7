// Package p11test provides an in-memory PKCS#11 module for tests
package p11test

import (
	"bytes"
	"sync"

	"github.com/effective-security/pkcs11uri/attribute"
	"github.com/miekg/pkcs11"
)

// Object is a token object
type Object struct {
	// Attributes holds raw attribute values
	Attributes map[uint][]byte
	// Sensitive attributes can not be read
	Sensitive map[uint]bool
	// Private objects are visible only after login
	Private bool
}

// NewObject returns an object with CKA_CLASS, CKA_LABEL and CKA_ID set.
// A nil id leaves CKA_ID unset.
func NewObject(class uint, label string, id []byte) *Object {
	raw, err := attribute.NativePlatform().PutULong(uint64(class))
	if err != nil {
		panic(err)
	}
	o := &Object{
		Attributes: map[uint][]byte{
			pkcs11.CKA_CLASS: raw,
			pkcs11.CKA_LABEL: []byte(label),
		},
		Sensitive: map[uint]bool{},
	}
	if id != nil {
		o.Attributes[pkcs11.CKA_ID] = id
	}
	return o
}

// SetULong sets a CK_ULONG attribute in the native layout
func (o *Object) SetULong(typ uint, v uint) *Object {
	raw, err := attribute.NativePlatform().PutULong(uint64(v))
	if err != nil {
		panic(err)
	}
	o.Attributes[typ] = raw
	return o
}

// Slot is a slot with an optional token
type Slot struct {
	ID   uint
	Info pkcs11.SlotInfo
	// Token is nil for an empty slot
	Token   *pkcs11.TokenInfo
	PIN     string
	Objects []*Object
}

type session struct {
	slot     *Slot
	loggedIn bool
	found    []pkcs11.ObjectHandle
	finding  bool
}

// Ctx is an in-memory module
type Ctx struct {
	Info  pkcs11.Info
	Slots []*Slot

	// InitializeErr is returned by Initialize when set
	InitializeErr error

	lock        sync.Mutex
	initialized bool
	finalized   bool
	destroyed   bool
	next        pkcs11.SessionHandle
	sessions    map[pkcs11.SessionHandle]*session
}

// New returns a module with the given slots
func New(info pkcs11.Info, slots ...*Slot) *Ctx {
	return &Ctx{
		Info:     info,
		Slots:    slots,
		sessions: map[pkcs11.SessionHandle]*session{},
	}
}

// Initialized returns true after Initialize succeeded
func (c *Ctx) Initialized() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.initialized
}

// Finalized returns true after Finalize
func (c *Ctx) Finalized() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.finalized
}

// Destroyed returns true after Destroy
func (c *Ctx) Destroyed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.destroyed
}

// OpenSessions returns the number of sessions that are not closed
func (c *Ctx) OpenSessions() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.sessions)
}

// Initialize the module
func (c *Ctx) Initialize(_ ...pkcs11.InitializeOption) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.InitializeErr != nil {
		return c.InitializeErr
	}
	if c.initialized {
		return pkcs11.Error(pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED)
	}
	c.initialized = true
	return nil
}

// Finalize the module
func (c *Ctx) Finalize() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.initialized {
		return pkcs11.Error(pkcs11.CKR_CRYPTOKI_NOT_INITIALIZED)
	}
	c.initialized = false
	c.finalized = true
	c.sessions = map[pkcs11.SessionHandle]*session{}
	return nil
}

// Destroy releases the module
func (c *Ctx) Destroy() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.destroyed = true
}

// GetInfo returns the library information
func (c *Ctx) GetInfo() (pkcs11.Info, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.initialized {
		return pkcs11.Info{}, pkcs11.Error(pkcs11.CKR_CRYPTOKI_NOT_INITIALIZED)
	}
	return c.Info, nil
}

// GetSlotList returns the slot IDs
func (c *Ctx) GetSlotList(tokenPresent bool) ([]uint, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.initialized {
		return nil, pkcs11.Error(pkcs11.CKR_CRYPTOKI_NOT_INITIALIZED)
	}
	var list []uint
	for _, s := range c.Slots {
		if tokenPresent && s.Token == nil {
			continue
		}
		list = append(list, s.ID)
	}
	return list, nil
}

func (c *Ctx) slot(id uint) *Slot {
	for _, s := range c.Slots {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// GetSlotInfo returns the slot information
func (c *Ctx) GetSlotInfo(slotID uint) (pkcs11.SlotInfo, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	s := c.slot(slotID)
	if s == nil {
		return pkcs11.SlotInfo{}, pkcs11.Error(pkcs11.CKR_SLOT_ID_INVALID)
	}
	info := s.Info
	if s.Token != nil {
		info.Flags |= pkcs11.CKF_TOKEN_PRESENT
	}
	return info, nil
}

// GetTokenInfo returns the token information
func (c *Ctx) GetTokenInfo(slotID uint) (pkcs11.TokenInfo, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	s := c.slot(slotID)
	if s == nil {
		return pkcs11.TokenInfo{}, pkcs11.Error(pkcs11.CKR_SLOT_ID_INVALID)
	}
	if s.Token == nil {
		return pkcs11.TokenInfo{}, pkcs11.Error(pkcs11.CKR_TOKEN_NOT_PRESENT)
	}
	return *s.Token, nil
}

// OpenSession opens a session
func (c *Ctx) OpenSession(slotID uint, flags uint) (pkcs11.SessionHandle, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if flags&pkcs11.CKF_SERIAL_SESSION == 0 {
		return 0, pkcs11.Error(pkcs11.CKR_SESSION_PARALLEL_NOT_SUPPORTED)
	}
	s := c.slot(slotID)
	if s == nil {
		return 0, pkcs11.Error(pkcs11.CKR_SLOT_ID_INVALID)
	}
	if s.Token == nil {
		return 0, pkcs11.Error(pkcs11.CKR_TOKEN_NOT_PRESENT)
	}
	c.next++
	c.sessions[c.next] = &session{slot: s}
	return c.next, nil
}

func (c *Ctx) session(sh pkcs11.SessionHandle) (*session, error) {
	s, ok := c.sessions[sh]
	if !ok {
		return nil, pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	return s, nil
}

// CloseSession closes the session
func (c *Ctx) CloseSession(sh pkcs11.SessionHandle) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, err := c.session(sh); err != nil {
		return err
	}
	delete(c.sessions, sh)
	return nil
}

// Login authenticates the session
func (c *Ctx) Login(sh pkcs11.SessionHandle, userType uint, pin string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	s, err := c.session(sh)
	if err != nil {
		return err
	}
	if userType != pkcs11.CKU_USER {
		return pkcs11.Error(pkcs11.CKR_USER_TYPE_INVALID)
	}
	if s.loggedIn {
		return pkcs11.Error(pkcs11.CKR_USER_ALREADY_LOGGED_IN)
	}
	if pin != s.slot.PIN {
		return pkcs11.Error(pkcs11.CKR_PIN_INCORRECT)
	}
	s.loggedIn = true
	return nil
}

// Logout ends the login
func (c *Ctx) Logout(sh pkcs11.SessionHandle) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	s, err := c.session(sh)
	if err != nil {
		return err
	}
	if !s.loggedIn {
		return pkcs11.Error(pkcs11.CKR_USER_NOT_LOGGED_IN)
	}
	s.loggedIn = false
	return nil
}

// FindObjectsInit starts a search of objects that match the template
func (c *Ctx) FindObjectsInit(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	s, err := c.session(sh)
	if err != nil {
		return err
	}
	if s.finding {
		return pkcs11.Error(pkcs11.CKR_OPERATION_ACTIVE)
	}

	s.found = nil
	for i, o := range s.slot.Objects {
		if o.Private && !s.loggedIn {
			continue
		}
		if matches(o, temp) {
			s.found = append(s.found, pkcs11.ObjectHandle(i+1))
		}
	}
	s.finding = true
	return nil
}

func matches(o *Object, temp []*pkcs11.Attribute) bool {
	for _, a := range temp {
		v, ok := o.Attributes[a.Type]
		if !ok || !bytes.Equal(v, a.Value) {
			return false
		}
	}
	return true
}

// FindObjects returns up to max handles of the active search
func (c *Ctx) FindObjects(sh pkcs11.SessionHandle, max int) ([]pkcs11.ObjectHandle, bool, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	s, err := c.session(sh)
	if err != nil {
		return nil, false, err
	}
	if !s.finding {
		return nil, false, pkcs11.Error(pkcs11.CKR_OPERATION_NOT_INITIALIZED)
	}
	n := min(max, len(s.found))
	res := s.found[:n]
	s.found = s.found[n:]
	return res, len(s.found) > 0, nil
}

// FindObjectsFinal ends the search
func (c *Ctx) FindObjectsFinal(sh pkcs11.SessionHandle) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	s, err := c.session(sh)
	if err != nil {
		return err
	}
	if !s.finding {
		return pkcs11.Error(pkcs11.CKR_OPERATION_NOT_INITIALIZED)
	}
	s.finding = false
	s.found = nil
	return nil
}

// GetAttributeValue returns the requested attributes
func (c *Ctx) GetAttributeValue(sh pkcs11.SessionHandle, o pkcs11.ObjectHandle, a []*pkcs11.Attribute) ([]*pkcs11.Attribute, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	s, err := c.session(sh)
	if err != nil {
		return nil, err
	}
	idx := int(o) - 1
	if idx < 0 || idx >= len(s.slot.Objects) {
		return nil, pkcs11.Error(pkcs11.CKR_OBJECT_HANDLE_INVALID)
	}
	obj := s.slot.Objects[idx]
	if obj.Private && !s.loggedIn {
		return nil, pkcs11.Error(pkcs11.CKR_OBJECT_HANDLE_INVALID)
	}

	res := make([]*pkcs11.Attribute, 0, len(a))
	for _, attr := range a {
		if obj.Sensitive[attr.Type] {
			return nil, pkcs11.Error(pkcs11.CKR_ATTRIBUTE_SENSITIVE)
		}
		v, ok := obj.Attributes[attr.Type]
		if !ok {
			return nil, pkcs11.Error(pkcs11.CKR_ATTRIBUTE_TYPE_INVALID)
		}
		res = append(res, &pkcs11.Attribute{Type: attr.Type, Value: bytes.Clone(v)})
	}
	return res, nil
}
