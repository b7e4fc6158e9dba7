package crypto11

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/pkcs11uri/metricskey"
	"github.com/effective-security/pkcs11uri/uri"
	"github.com/effective-security/xlog"
	"github.com/miekg/pkcs11"
)

// SlotTokenInfo describes a slot and the token in it
type SlotTokenInfo struct {
	SlotID           uint   `json:"slot_id"`
	SlotDescription  string `json:"slot_description,omitempty"`
	SlotManufacturer string `json:"slot_manufacturer,omitempty"`
	TokenPresent     bool   `json:"token_present"`
	Label            string `json:"label,omitempty"`
	Manufacturer     string `json:"manufacturer,omitempty"`
	Model            string `json:"model,omitempty"`
	Serial           string `json:"serial,omitempty"`
	Flags            uint   `json:"flags,omitempty"`

	// Slot is the slot information as reported by the module
	Slot pkcs11.SlotInfo `json:"-"`
	// Token is the token information, nil when the slot is empty
	Token *pkcs11.TokenInfo `json:"-"`
}

func newSlotTokenInfo(slotID uint, si pkcs11.SlotInfo, ti *pkcs11.TokenInfo) *SlotTokenInfo {
	res := &SlotTokenInfo{
		SlotID:           slotID,
		SlotDescription:  trimPadding(si.SlotDescription),
		SlotManufacturer: trimPadding(si.ManufacturerID),
		Slot:             si,
	}
	if ti != nil {
		res.TokenPresent = true
		res.Label = trimPadding(ti.Label)
		res.Manufacturer = trimPadding(ti.ManufacturerID)
		res.Model = trimPadding(ti.Model)
		res.Serial = trimPadding(ti.SerialNumber)
		res.Flags = ti.Flags
		res.Token = ti
	}
	return res
}

// TokensInfo returns list of initialized tokens
func (m *Module) TokensInfo() ([]*SlotTokenInfo, error) {
	defer metricskey.PerfModuleOperation.MeasureSince(time.Now(), "tokens")

	list := []*SlotTokenInfo{}
	slots, err := m.ctx.GetSlotList(true)
	if err != nil {
		return nil, errors.WithMessage(err, "GetSlotList")
	}

	logger.KV(xlog.TRACE, "slots", len(slots))

	for _, slotID := range slots {
		si, err := m.ctx.GetSlotInfo(slotID)
		if err != nil {
			return nil, errors.WithMessagef(err, "GetSlotInfo: %d", slotID)
		}
		ti, err := m.ctx.GetTokenInfo(slotID)
		if err != nil {
			logger.KV(xlog.ERROR,
				"reason", "GetTokenInfo",
				"slotID", slotID,
				"manufacturer", si.ManufacturerID,
				"description", si.SlotDescription,
				"err", err)
			continue
		}
		if ti.SerialNumber != "" || ti.Label != "" {
			list = append(list, newSlotTokenInfo(slotID, si, &ti))
		}
	}
	return list, nil
}

// MatchingSlots returns the slots identified by the URI.
// The library attributes are checked first, then the slot attributes of each slot,
// and the token attributes when the URI defines any of them.
// With tokenPresent only the slots holding a token are considered.
func (m *Module) MatchingSlots(u *uri.URI, tokenPresent bool) ([]*SlotTokenInfo, error) {
	defer metricskey.PerfURIMatch.MeasureSince(time.Now(), "slots")

	info, err := m.Info()
	if err != nil {
		return nil, err
	}
	if !uri.MatchesLibrary(u, info) {
		logger.KV(xlog.DEBUG, "reason", "library_mismatch", "uri", u.Redacted())
		return nil, nil
	}

	slots, err := m.ctx.GetSlotList(tokenPresent)
	if err != nil {
		return nil, errors.WithMessage(err, "GetSlotList")
	}

	var list []*SlotTokenInfo
	for _, slotID := range slots {
		si, err := m.ctx.GetSlotInfo(slotID)
		if err != nil {
			return nil, errors.WithMessagef(err, "GetSlotInfo: %d", slotID)
		}
		if !uri.MatchesSlot(u, slotID, si) {
			continue
		}

		var token *pkcs11.TokenInfo
		if si.Flags&pkcs11.CKF_TOKEN_PRESENT != 0 {
			ti, err := m.ctx.GetTokenInfo(slotID)
			if err != nil {
				logger.KV(xlog.WARNING, "reason", "GetTokenInfo", "slotID", slotID, "err", err)
			} else {
				token = &ti
			}
		}

		if u.DefinesToken() && (token == nil || !uri.MatchesToken(u, *token)) {
			continue
		}
		list = append(list, newSlotTokenInfo(slotID, si, token))
	}

	logger.KV(xlog.DEBUG, "uri", u.Redacted(), "matched", len(list))
	return list, nil
}

// ObjectURI returns a URI that identifies the object in the token
func ObjectURI(slot *SlotTokenInfo, obj uri.ObjectInfo) (*uri.URI, error) {
	b := uri.NewBuilder(uri.WithLengthCheck(false))
	if slot != nil && slot.TokenPresent {
		if err := b.SetToken(slot.Label); err != nil {
			return nil, err
		}
		if err := b.SetManufacturer(slot.Manufacturer); err != nil {
			return nil, err
		}
		if err := b.SetModel(slot.Model); err != nil {
			return nil, err
		}
		if err := b.SetSerial(slot.Serial); err != nil {
			return nil, err
		}
	}
	if obj.Label != nil {
		if err := b.SetObject(*obj.Label); err != nil {
			return nil, err
		}
	}
	if obj.Class != nil && obj.Class.Valid() {
		if err := b.SetType(*obj.Class); err != nil {
			return nil, err
		}
	}
	if obj.ID != nil {
		b.SetID(obj.ID)
	}
	return b.URI()
}
