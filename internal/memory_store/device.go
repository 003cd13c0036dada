package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"errors"
	"os"
	"os/user"
	"regexp"
	"strings"
	"sync"
)

// UnknownDevice is used when the local identity cannot be determined.
const UnknownDevice DeviceKey = "unknown_device"

// DeviceKey names one memory document.
type DeviceKey string

func (k DeviceKey) String() string { return string(k) }

// Path is the document path for the key, relative to the memory namespace.
func (k DeviceKey) Path() string { return string(k) + ".json" }

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeDeviceKey builds a key from any identity parts. Every run of
// characters outside [a-z0-9] becomes a single underscore.
func SanitizeDeviceKey(parts ...string) DeviceKey {
	joined := strings.ToLower(strings.Join(parts, "_"))
	key := strings.Trim(nonAlnum.ReplaceAllString(joined, "_"), "_")
	if key == "" {
		return UnknownDevice
	}
	return DeviceKey(key)
}

// DeviceResolver derives the local device key from the OS user and host name.
// The key is computed once per resolver.
type DeviceResolver struct {
	override   string
	lookupUser func() (string, error)
	lookupHost func() (string, error)

	once sync.Once
	key  DeviceKey
}

// NewDeviceResolver creates a resolver. A non-empty override is sanitized and
// used instead of the OS identity.
func NewDeviceResolver(override string) *DeviceResolver {
	return &DeviceResolver{
		override:   override,
		lookupUser: currentUser,
		lookupHost: os.Hostname,
	}
}

// ResolveDeviceKey returns the memoised device key.
func (r *DeviceResolver) ResolveDeviceKey() DeviceKey {
	r.once.Do(func() {
		r.key = r.resolve()
	})
	return r.key
}

func (r *DeviceResolver) resolve() DeviceKey {
	if strings.TrimSpace(r.override) != "" {
		return SanitizeDeviceKey(r.override)
	}
	name, err := r.lookupUser()
	if err != nil || strings.TrimSpace(name) == "" {
		return UnknownDevice
	}
	host, err := r.lookupHost()
	if err != nil || strings.TrimSpace(host) == "" {
		return UnknownDevice
	}
	return SanitizeDeviceKey(name, host)
}

func currentUser() (string, error) {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username, nil
	}
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	return "", errors.New("cannot determine current user")
}
