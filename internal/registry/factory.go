// Package registry wires the platform adapter dispatch table: given a
// credential set tagged with a Platform, it returns the concrete Adapter.
// Kept separate from package platform itself so the common interface/types
// package never has to import the adapters that depend on it.
package registry

import (
	"fmt"

	"compliance-monitor/internal/platform"
	"compliance-monitor/internal/platform/ctrader"
	"compliance-monitor/internal/platform/mt5"
)

// DefaultFactory builds an Adapter for a credential set based on its
// Platform tag. This is the "one dispatch table for adapters" called for by
// the platform variant: both adapters satisfy the same interface, so nothing
// above this layer needs a type switch.
func DefaultFactory(creds platform.AccountCredentials) (platform.Adapter, error) {
	switch creds.Platform {
	case platform.PlatformMT5:
		return mt5.New(mt5.Config{
			AccountID: creds.AccountID,
			Server:    creds.Server,
			Login:     creds.Login,
			Password:  creds.Password,
		}), nil

	case platform.PlatformCTrader:
		return ctrader.New(ctrader.Config{
			AccountID: creds.AccountID,
			Host:      creds.Server,
			APIToken:  creds.APIToken,
		}), nil

	default:
		return nil, fmt.Errorf("registry: unsupported platform %q", creds.Platform)
	}
}
