// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package protocol

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/soothill/wifi-tv-remote/pkg/errors"
)

// DiscoveredDevice is a TV found on the network or entered by address.
type DiscoveredDevice struct {
	Name        string `json:"name"`
	IPAddress   string `json:"ip_address" validate:"required,ipv4"`
	Brand       string `json:"brand"`
	Port        int    `json:"port" validate:"min=1,max=65535"`
	ServiceType string `json:"service_type,omitempty"`
	UniqueID    string `json:"unique_id,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func deviceValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks that the device carries a dotted-quad IPv4 address and a
// usable port.
func (d DiscoveredDevice) Validate() error {
	err := deviceValidator().Struct(d)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if apperrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.NewValidationError(fe.Field(), fe.Value(), "failed '"+fe.Tag()+"' rule")
	}
	return err
}

// DisplayName renders the device for lists: "name (ip)", or the bare IP when
// the name is blank.
func (d DiscoveredDevice) DisplayName() string {
	if strings.TrimSpace(d.Name) == "" {
		return d.IPAddress
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.IPAddress)
}

// Addr returns ip:port.
func (d DiscoveredDevice) Addr() string {
	return net.JoinHostPort(d.IPAddress, strconv.Itoa(d.Port))
}

// withPort returns a copy of d using port.
func (d DiscoveredDevice) withPort(port int) DiscoveredDevice {
	d.Port = port
	return d
}
