package validate

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"presence-backend/internal/model"
	"presence-backend/internal/token"
)

// ResolvedDevice is an enrolled device matched to a broadcast token prefix.
type ResolvedDevice struct {
	DeviceID string
	UserRef  string
	Secret   []byte
}

// DeviceResolver maps a (org, slot, token prefix) observation back to an
// enrolled device, if the backend holds a secret that produces that prefix.
type DeviceResolver interface {
	Resolve(ctx context.Context, orgID string, slot uint32, prefix [token.PrefixSize]byte) (*ResolvedDevice, error)
}

// DeviceSource lists the enrolled devices of an org. Satisfied by the
// store layer.
type DeviceSource interface {
	ListDevices(ctx context.Context, orgID string) ([]model.Device, error)
}

// Directory resolves token prefixes by recomputing every enrolled device's
// token for the report's slot. The per-(org, slot) prefix table is cached
// for the replay retention window, so a slot's worth of reports from an org
// costs one device scan, not one per report.
type Directory struct {
	devices DeviceSource
	slots   *cache.Cache
}

// NewDirectory creates a directory whose slot tables expire after the given
// retention window.
func NewDirectory(devices DeviceSource, retention time.Duration) *Directory {
	return &Directory{
		devices: devices,
		slots:   cache.New(retention, 2*retention),
	}
}

type slotTable map[[token.PrefixSize]byte]ResolvedDevice

func (d *Directory) Resolve(ctx context.Context, orgID string, slot uint32, prefix [token.PrefixSize]byte) (*ResolvedDevice, error) {
	table, err := d.slotTableFor(ctx, orgID, slot)
	if err != nil {
		return nil, err
	}
	if resolved, ok := table[prefix]; ok {
		return &resolved, nil
	}
	return nil, nil
}

func (d *Directory) slotTableFor(ctx context.Context, orgID string, slot uint32) (slotTable, error) {
	key := fmt.Sprintf("%s:%d", orgID, slot)
	if cached, found := d.slots.Get(key); found {
		return cached.(slotTable), nil
	}

	devices, err := d.devices.ListDevices(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load devices for org %s: %w", orgID, err)
	}

	table := make(slotTable, len(devices))
	for _, device := range devices {
		secret, err := hex.DecodeString(device.SecretHex)
		if err != nil || len(secret) != token.SecretSize {
			// A corrupt enrollment row must not take down validation for
			// the rest of the org.
			continue
		}
		prefix, _ := token.Generate(secret, slot)
		table[prefix] = ResolvedDevice{
			DeviceID: device.ID,
			UserRef:  device.UserRef,
			Secret:   secret,
		}
	}

	d.slots.SetDefault(key, table)
	return table, nil
}
