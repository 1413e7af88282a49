// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package host

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// HasDefaultRoute reports whether the host has any default route. Used
// as a preflight before sandbox steps that install packages, so missing
// connectivity is reported up front instead of as an obscure fetch
// failure inside the sandbox.
func HasDefaultRoute() (bool, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_ALL)
	if err != nil {
		return false, fmt.Errorf("list routes: %w", err)
	}

	for _, route := range routes {
		if route.Dst == nil {
			return true, nil
		}
	}

	return false, nil
}
