package cli

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/pkcs11uri/attribute"
	"github.com/effective-security/pkcs11uri/crypto11"
	"github.com/effective-security/pkcs11uri/uri"
	"github.com/effective-security/xlog"
	"github.com/miekg/pkcs11"
)

// ModuleCmd prints the library information
type ModuleCmd struct {
	URI string `kong:"arg" optional:"" help:"PKCS#11 URI with module-path or module-name"`
}

// ModuleInfo is the library information
type ModuleInfo struct {
	Path               string `json:"path"`
	CryptokiVersion    string `json:"cryptoki_version"`
	Manufacturer       string `json:"manufacturer"`
	LibraryDescription string `json:"library_description"`
	LibraryVersion     string `json:"library_version"`
	Matches            bool   `json:"matches"`
}

// Run the command
func (a *ModuleCmd) Run(ctx *Cli) error {
	m, u, err := ctx.Module(a.URI)
	if err != nil {
		return err
	}
	info, err := m.Info()
	if err != nil {
		return err
	}
	slots, err := m.MatchingSlots(u, false)
	if err != nil {
		return err
	}

	ctx.WriteJSON(&ModuleInfo{
		Path:               m.Path(),
		CryptokiVersion:    versionString(info.CryptokiVersion.Major, info.CryptokiVersion.Minor),
		Manufacturer:       trim(info.ManufacturerID),
		LibraryDescription: trim(info.LibraryDescription),
		LibraryVersion:     versionString(info.LibraryVersion.Major, info.LibraryVersion.Minor),
		Matches:            len(slots) > 0,
	})
	return nil
}

// SlotsCmd prints the slots matching the URI
type SlotsCmd struct {
	URI string `kong:"arg" optional:"" help:"PKCS#11 URI"`
	All bool   `help:"include slots without a token"`
}

// Run the command
func (a *SlotsCmd) Run(ctx *Cli) error {
	m, u, err := ctx.Module(a.URI)
	if err != nil {
		return err
	}
	slots, err := m.MatchingSlots(u, !a.All)
	if err != nil {
		return err
	}
	if slots == nil {
		slots = []*crypto11.SlotTokenInfo{}
	}
	ctx.WriteJSON(slots)
	return nil
}

// ObjectsCmd prints the objects matching the URI
type ObjectsCmd struct {
	URI string `kong:"arg" optional:"" help:"PKCS#11 URI"`
}

// ObjectItem describes a token object
type ObjectItem struct {
	SlotID uint   `json:"slot_id"`
	URI    string `json:"uri"`
	Class   string `json:"class,omitempty"`
	KeyType string `json:"key_type,omitempty"`
	Label   string `json:"label,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Run the command
func (a *ObjectsCmd) Run(ctx *Cli) error {
	m, u, err := ctx.Module(a.URI)
	if err != nil {
		return err
	}
	pin, err := ctx.Pin(u)
	if err != nil {
		return err
	}
	slots, err := m.MatchingSlots(u, true)
	if err != nil {
		return err
	}

	list := []*ObjectItem{}
	for _, slot := range slots {
		items, err := listObjects(m, slot, u, pin)
		if err != nil {
			return errors.WithMessagef(err, "failed to list objects on slot %d", slot.SlotID)
		}
		list = append(list, items...)
	}
	ctx.WriteJSON(list)
	return nil
}

func listObjects(m *crypto11.Module, slot *crypto11.SlotTokenInfo, u *uri.URI, pin string) ([]*ObjectItem, error) {
	s, err := m.OpenSession(slot.SlotID, false)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if pin != "" {
		if err = s.Login(pin); err != nil {
			return nil, err
		}
	}

	handles, err := s.FindObjects(u)
	if err != nil {
		return nil, err
	}

	var list []*ObjectItem
	for _, h := range handles {
		info, err := s.ObjectInfo(h)
		if err != nil {
			return nil, err
		}
		ou, err := crypto11.ObjectURI(slot, info)
		if err != nil {
			return nil, err
		}
		item := &ObjectItem{
			SlotID: slot.SlotID,
			URI:    ou.String(),
		}
		if info.Class != nil {
			item.Class = attribute.ObjectClassName(uint(*info.Class))
			if isKey(*info.Class) {
				v, ok, err := s.ReadValue(h, pkcs11.CKA_KEY_TYPE, attribute.KindULong)
				if err != nil {
					return nil, err
				}
				if ok {
					kt, _ := v.AsULong()
					item.KeyType = attribute.KeyTypeName(uint(kt))
				}
			}
		}
		if info.Label != nil {
			item.Label = *info.Label
		}
		if info.ID != nil {
			item.ID = hex.EncodeToString(info.ID)
		}
		list = append(list, item)
	}

	logger.KV(xlog.DEBUG, "slotID", slot.SlotID, "objects", len(list))
	return list, nil
}

func isKey(t uri.ObjectType) bool {
	return t == uri.ObjectTypePrivateKey || t == uri.ObjectTypePublicKey || t == uri.ObjectTypeSecretKey
}

func versionString(major, minor byte) string {
	return fmt.Sprintf("%d.%d", major, minor)
}

func trim(s string) string {
	return strings.TrimRight(s, " \x00")
}
