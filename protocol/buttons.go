// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import "sort"

// Button names per protocol label.
var buttonsByProtocol = map[string]func() []string{
	samsungProtocol:   samsungKeys.Names,
	lgProtocol:        lgKeys.Names,
	sonyProtocol:      sonyKeys.Names,
	rokuProtocol:      rokuKeys.Names,
	philipsProtocol:   philipsKeys.Names,
	panasonicProtocol: panasonicKeys.Names,
	vizioProtocol:     vizioKeys.Names,
	genericProtocol:   genericKeys.Names,
}

// CanonicalButtons lists every button name any protocol understands, sorted.
func CanonicalButtons() []string {
	seen := make(map[string]struct{})
	for _, names := range buttonsByProtocol {
		for _, n := range names() {
			seen[n] = struct{}{}
		}
	}

	all := make([]string, 0, len(seen))
	for n := range seen {
		all = append(all, n)
	}
	sort.Strings(all)
	return all
}

// Buttons lists the button names the handler for brand can send, sorted.
func (r *Registry) Buttons(brand string) []string {
	return buttonsByProtocol[r.Resolve(brand).ProtocolName()]()
}
