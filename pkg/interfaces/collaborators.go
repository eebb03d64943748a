// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package interfaces

import "context"

// ButtonCatalog supplies the canonical button names a UI offers for a brand.
type ButtonCatalog interface {
	Buttons(brand string) []string
}

// IRTransmitter sends a raw infrared pattern. Pattern holds alternating
// on/off durations in microseconds at the given carrier frequency.
type IRTransmitter interface {
	Transmit(ctx context.Context, frequencyHz int, pattern []int) error
}
