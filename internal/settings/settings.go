// Package settings provides the persistent key-value store that holds device
// configuration (sensor pins, network addressing, wifi credentials) and the
// boot counter. Values are typed; reading a key that was never written
// returns ErrNotFound and callers fall back to a compile-time default.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

var (
	// ErrNotFound is returned when a key has never been written.
	ErrNotFound = errors.New("settings: key not found")

	// ErrWrongType is returned when a key exists but holds another type.
	ErrWrongType = errors.New("settings: type mismatch")

	// ErrUnknownKey is returned by Apply for keys the device does not use.
	ErrUnknownKey = errors.New("settings: unknown key")
)

// Keys used by the device.
const (
	KeyResetCounter = "reset-counter"
	KeyDoorPin      = "door-pin"
	KeyLightChannel = "light-pin"
	KeyIP           = "ip"
	KeyGateway      = "gateway"
	KeySubnet       = "subnet"
	KeyWifiSSID     = "wifi-ssid"
	KeyWifiPassword = "wifi-password"
)

// Compile-time defaults used when a key is not set.
const (
	DefaultDoorPin      = 8
	DefaultLightChannel = 2
	DefaultIP           = "192.168.0.150"
	DefaultSubnet       = "255.255.255.0"
	DefaultGateway      = "192.168.178.1"
	DefaultWifiSSID     = "" // empty disables networking
	DefaultWifiPassword = ""
)

// Store is a typed key-value store.
type Store interface {
	GetInt8(key string) (int8, error)
	GetInt32(key string) (int32, error)
	GetString(key string) (string, error)

	SetInt8(key string, v int8) error
	SetInt32(key string, v int32) error
	SetString(key string, v string) error

	// Close releases the underlying storage.
	Close() error
}

// kind tags a stored value with its type.
type kind string

const (
	kindInt8   kind = "i8"
	kindInt32  kind = "i32"
	kindString kind = "str"
)

// keyKinds lists the type each known key is stored as.
var keyKinds = map[string]kind{
	KeyResetCounter: kindInt32,
	KeyDoorPin:      kindInt8,
	KeyLightChannel: kindInt8,
	KeyIP:           kindString,
	KeyGateway:      kindString,
	KeySubnet:       kindString,
	KeyWifiSSID:     kindString,
	KeyWifiPassword: kindString,
}

// Channels holds the sensor channel identifiers. Immutable after startup.
type Channels struct {
	DoorPin      int
	LightChannel int
}

// Network holds the station configuration.
type Network struct {
	SSID     string
	Password string
	Address  netip.Prefix // requested static address with mask
	Gateway  netip.Addr
}

// Int8Or returns the value of key, or def if the key is not set.
func Int8Or(s Store, key string, def int8, logger *slog.Logger) (int8, error) {
	v, err := s.GetInt8(key)
	if errors.Is(err, ErrNotFound) {
		logger.Info("not set, using default", "key", key, "value", def)
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// StringOr returns the value of key, or def if the key is not set or empty.
func StringOr(s Store, key, def string, logger *slog.Logger) (string, error) {
	v, err := s.GetString(key)
	if errors.Is(err, ErrNotFound) || (err == nil && v == "") {
		logger.Info("not set, using default", "key", key)
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// LoadChannels resolves the door and light channel identifiers.
func LoadChannels(s Store, logger *slog.Logger) (Channels, error) {
	door, err := Int8Or(s, KeyDoorPin, DefaultDoorPin, logger)
	if err != nil {
		return Channels{}, err
	}
	light, err := Int8Or(s, KeyLightChannel, DefaultLightChannel, logger)
	if err != nil {
		return Channels{}, err
	}
	logger.Info("channels resolved", "door_pin", door, "light_channel", light)
	return Channels{DoorPin: int(door), LightChannel: int(light)}, nil
}

// LoadNetwork resolves the wifi credentials and static addressing.
func LoadNetwork(s Store, logger *slog.Logger) (Network, error) {
	var n Network
	var err error
	if n.SSID, err = StringOr(s, KeyWifiSSID, DefaultWifiSSID, logger); err != nil {
		return Network{}, err
	}
	if n.Password, err = StringOr(s, KeyWifiPassword, DefaultWifiPassword, logger); err != nil {
		return Network{}, err
	}
	ip, err := StringOr(s, KeyIP, DefaultIP, logger)
	if err != nil {
		return Network{}, err
	}
	mask, err := StringOr(s, KeySubnet, DefaultSubnet, logger)
	if err != nil {
		return Network{}, err
	}
	gw, err := StringOr(s, KeyGateway, DefaultGateway, logger)
	if err != nil {
		return Network{}, err
	}

	if n.Address, err = parsePrefix(ip, mask); err != nil {
		return Network{}, err
	}
	if n.Gateway, err = netip.ParseAddr(gw); err != nil {
		return Network{}, fmt.Errorf("parse gateway %q: %w", gw, err)
	}

	logger.Info("network resolved",
		"ssid", n.SSID,
		"password_len", len(n.Password),
		"address", n.Address.String(),
		"gateway", n.Gateway.String())
	return n, nil
}

// parsePrefix combines a dotted address and a dotted netmask.
func parsePrefix(ip, mask string) (netip.Prefix, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("parse ip %q: %w", ip, err)
	}
	m, err := netip.ParseAddr(mask)
	if err != nil || !m.Is4() {
		return netip.Prefix{}, fmt.Errorf("parse subnet %q: invalid mask", mask)
	}
	ones, bits := net.IPMask(m.AsSlice()).Size()
	if bits == 0 {
		return netip.Prefix{}, fmt.Errorf("parse subnet %q: non-contiguous mask", mask)
	}
	return netip.PrefixFrom(addr, ones), nil
}

// BumpResetCounter increments the persistent boot counter and returns the
// new value. A missing counter starts from zero.
func BumpResetCounter(s Store) (int32, error) {
	n, err := s.GetInt32(KeyResetCounter)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("get %s: %w", KeyResetCounter, err)
	}
	n++
	if err := s.SetInt32(KeyResetCounter, n); err != nil {
		return 0, fmt.Errorf("set %s: %w", KeyResetCounter, err)
	}
	return n, nil
}

// Apply writes "key=value" assignments, converting each value to the type
// the key is stored as.
func Apply(s Store, assignments []string) error {
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok {
			return fmt.Errorf("settings: %q is not key=value", a)
		}
		key = strings.TrimSpace(key)
		k, known := keyKinds[key]
		if !known {
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}

		var err error
		switch k {
		case kindInt8:
			var v int64
			if v, err = strconv.ParseInt(value, 10, 8); err == nil {
				err = s.SetInt8(key, int8(v))
			}
		case kindInt32:
			var v int64
			if v, err = strconv.ParseInt(value, 10, 32); err == nil {
				err = s.SetInt32(key, int32(v))
			}
		default:
			err = s.SetString(key, value)
		}
		if err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

// decode converts a stored text value of kind have into the wanted kind.
func decode(have, want kind, text string) (int64, error) {
	if have != want {
		return 0, ErrWrongType
	}
	switch want {
	case kindInt8:
		return strconv.ParseInt(text, 10, 8)
	case kindInt32:
		return strconv.ParseInt(text, 10, 32)
	}
	return 0, ErrWrongType
}
