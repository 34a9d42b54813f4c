// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

// package directory tracks users and their devices. It answers the prompt's
// device and trust queries from the store and refreshes device lists from a
// homeserver when one is configured.
package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/toeirei/keyshare/internal/db"
	"github.com/toeirei/keyshare/internal/logging"
	"github.com/toeirei/keyshare/internal/model"
	"golang.org/x/sync/errgroup"
	"maunium.net/go/mautrix/id"
)

// DefaultRefreshInterval is how long a fetched device list stays fresh for
// non-forced downloads.
const DefaultRefreshInterval = 10 * time.Minute

// Fetcher retrieves the current device list and profile of a user from a
// remote source.
type Fetcher interface {
	FetchDevices(ctx context.Context, userID id.UserID) ([]model.Device, error)
	FetchProfile(ctx context.Context, userID id.UserID) (displayName string, err error)
}

// Directory is the device directory and trust evaluator used by the prompt.
type Directory struct {
	store           db.Store
	fetcher         Fetcher
	refreshInterval time.Duration
	now             func() time.Time

	// mu serializes merges per directory so two refreshes of the same user
	// cannot interleave their read-modify-write cycles.
	mu sync.Mutex
}

// Option configures a Directory.
type Option func(*Directory)

// WithFetcher enables remote refreshes through f.
func WithFetcher(f Fetcher) Option {
	return func(d *Directory) { d.fetcher = f }
}

// WithRefreshInterval overrides DefaultRefreshInterval.
func WithRefreshInterval(iv time.Duration) Option {
	return func(d *Directory) {
		if iv > 0 {
			d.refreshInterval = iv
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// New creates a Directory over store.
func New(store db.Store, opts ...Option) *Directory {
	d := &Directory{
		store:           store,
		refreshInterval: DefaultRefreshInterval,
		now:             time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DownloadKeys refreshes the device lists of users where needed and returns
// their non-deleted devices keyed by user and device id. Without force, a
// user whose list was fetched within the refresh interval is served from the
// store.
func (d *Directory) DownloadKeys(ctx context.Context, users []id.UserID, force bool) (map[id.UserID]map[id.DeviceID]*model.Device, error) {
	if d.fetcher != nil {
		g, gctx := errgroup.WithContext(ctx)
		for _, u := range users {
			g.Go(func() error {
				return d.refreshUser(gctx, u, force)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make(map[id.UserID]map[id.DeviceID]*model.Device, len(users))
	for _, u := range users {
		devices, err := d.store.GetDevices(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("load devices of %s: %w", u, err)
		}
		byID := make(map[id.DeviceID]*model.Device, len(devices))
		for i := range devices {
			if devices[i].Deleted {
				continue
			}
			byID[devices[i].DeviceID] = &devices[i]
		}
		out[u] = byID
	}
	return out, nil
}

func (d *Directory) refreshUser(ctx context.Context, userID id.UserID, force bool) error {
	existing, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", userID, err)
	}
	if !force && existing != nil && !existing.DevicesUpdatedAt.IsZero() &&
		d.now().Sub(existing.DevicesUpdatedAt) < d.refreshInterval {
		logging.Debugf("directory: device list of %s is fresh, skipping download", userID)
		return nil
	}

	fetched, err := d.fetcher.FetchDevices(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch devices of %s: %w", userID, err)
	}

	u := model.User{UserID: userID}
	if existing != nil {
		u = *existing
	}
	if name, err := d.fetcher.FetchProfile(ctx, userID); err != nil {
		logging.Debugf("directory: profile lookup for %s failed: %v", userID, err)
	} else if name != "" {
		u.DisplayName = name
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	stored, err := d.store.GetDevices(ctx, userID)
	if err != nil {
		return fmt.Errorf("load devices of %s: %w", userID, err)
	}
	for _, dev := range MergeDevices(stored, fetched) {
		if err := d.store.PutDevice(ctx, &dev); err != nil {
			return fmt.Errorf("store device %s: %w", dev, err)
		}
	}

	u.DevicesUpdatedAt = d.now().UTC()
	if err := d.store.SaveUser(ctx, &u); err != nil {
		return fmt.Errorf("store user %s: %w", userID, err)
	}
	logging.Debugf("directory: refreshed %d devices of %s", len(fetched), userID)
	return nil
}

// MergeDevices folds a fetched device list into the stored one. Known and
// trust carry over for unchanged devices. A device whose signing key changed
// loses its trust. Stored devices missing from the fetched list are marked
// deleted.
func MergeDevices(stored, fetched []model.Device) []model.Device {
	old := make(map[id.DeviceID]model.Device, len(stored))
	for _, s := range stored {
		old[s.DeviceID] = s
	}

	seen := make(map[id.DeviceID]bool, len(fetched))
	out := make([]model.Device, 0, len(fetched)+len(stored))
	for _, f := range fetched {
		seen[f.DeviceID] = true
		merged := f
		merged.Known = false
		merged.Trust = id.TrustStateUnset
		merged.Deleted = false
		if prev, ok := old[f.DeviceID]; ok {
			merged.Known = prev.Known
			if prev.SigningKey == "" || prev.SigningKey == f.SigningKey {
				merged.Trust = prev.Trust
			} else {
				logging.Warnf("directory: signing key of %s changed, resetting trust", f)
			}
		}
		out = append(out, merged)
	}
	for _, s := range stored {
		if !seen[s.DeviceID] && !s.Deleted {
			s.Deleted = true
			out = append(out, s)
		}
	}
	return out
}

// SetDeviceKnown marks a device as (not) previously seen.
func (d *Directory) SetDeviceKnown(ctx context.Context, userID id.UserID, deviceID id.DeviceID, known bool) error {
	return d.store.SetDeviceKnown(ctx, userID, deviceID, known)
}

// SetDeviceTrust records a new trust state for a device.
func (d *Directory) SetDeviceTrust(ctx context.Context, userID id.UserID, deviceID id.DeviceID, trust id.TrustState) error {
	return d.store.SetDeviceTrust(ctx, userID, deviceID, trust)
}

// GetUser resolves a user. It returns nil when the user is unknown.
func (d *Directory) GetUser(ctx context.Context, userID id.UserID) (*model.User, error) {
	return d.store.GetUser(ctx, userID)
}

// CheckDeviceTrust returns the stored trust state of a device, or
// TrustStateUnset when the device is not in the directory.
func (d *Directory) CheckDeviceTrust(ctx context.Context, userID id.UserID, deviceID id.DeviceID) (id.TrustState, error) {
	dev, err := d.store.GetDevice(ctx, userID, deviceID)
	if err != nil {
		return id.TrustStateUnset, err
	}
	if dev == nil {
		return id.TrustStateUnset, nil
	}
	return dev.Trust, nil
}

// IsVerified reports whether the device is explicitly verified.
func (d *Directory) IsVerified(ctx context.Context, userID id.UserID, deviceID id.DeviceID) (bool, error) {
	trust, err := d.CheckDeviceTrust(ctx, userID, deviceID)
	if err != nil {
		return false, err
	}
	return trust == id.TrustStateVerified, nil
}
