// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package directory

import (
	"context"
	"fmt"

	"github.com/toeirei/keyshare/internal/logging"
	"github.com/toeirei/keyshare/internal/model"
	"github.com/toeirei/keyshare/internal/verify"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// queryKeysTimeout is the server-side timeout for /keys/query, in milliseconds.
const queryKeysTimeout = 10_000

// MatrixFetcher reads device lists and profiles from a Matrix homeserver.
type MatrixFetcher struct {
	client *mautrix.Client
}

// NewMatrixFetcher logs in with an existing access token.
func NewMatrixFetcher(homeserverURL string, userID id.UserID, accessToken string) (*MatrixFetcher, error) {
	cli, err := mautrix.NewClient(homeserverURL, userID, accessToken)
	if err != nil {
		return nil, fmt.Errorf("create matrix client: %w", err)
	}
	return &MatrixFetcher{client: cli}, nil
}

// FetchDevices queries the device keys of userID.
func (f *MatrixFetcher) FetchDevices(ctx context.Context, userID id.UserID) ([]model.Device, error) {
	resp, err := f.client.QueryKeys(ctx, &mautrix.ReqQueryKeys{
		DeviceKeys: mautrix.DeviceKeysRequest{userID: mautrix.DeviceIDList{}},
		Timeout:    queryKeysTimeout,
	})
	if err != nil {
		return nil, err
	}
	if failure, ok := resp.Failures[userID.Homeserver()]; ok {
		return nil, fmt.Errorf("homeserver %s failed to answer key query: %v", userID.Homeserver(), failure)
	}

	keys := resp.DeviceKeys[userID]
	out := make([]model.Device, 0, len(keys))
	for deviceID, dk := range keys {
		if dk.UserID != userID || dk.DeviceID != deviceID {
			// A server must not hand us keys for a different device under this id.
			continue
		}
		signingKey := id.Ed25519(dk.Keys[id.NewDeviceKeyID(id.KeyAlgorithmEd25519, deviceID)])
		if err := verify.ValidateSigningKey(signingKey); err != nil {
			logging.Warnf("skipping session %s:%s: %v", userID, deviceID, err)
			continue
		}
		out = append(out, model.Device{
			UserID:      userID,
			DeviceID:    deviceID,
			DisplayName: deviceDisplayName(dk),
			IdentityKey: id.Curve25519(dk.Keys[id.NewDeviceKeyID(id.KeyAlgorithmCurve25519, deviceID)]),
			SigningKey:  signingKey,
		})
	}
	return out, nil
}

func deviceDisplayName(dk mautrix.DeviceKeys) string {
	if dk.Unsigned == nil {
		return ""
	}
	name, _ := dk.Unsigned["device_display_name"].(string)
	return name
}

// FetchProfile returns the user's display name.
func (f *MatrixFetcher) FetchProfile(ctx context.Context, userID id.UserID) (string, error) {
	profile, err := f.client.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	return profile.DisplayName, nil
}
