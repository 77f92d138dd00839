package db

import (
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/sha3"
	"gorm.io/gorm"
)

// ErrUnknownDevice is returned when no active device matches a key.
var ErrUnknownDevice = errors.New("unknown or inactive device")

// lastSeenInterval bounds how often a device's last_seen_at is rewritten.
const lastSeenInterval = time.Minute

// HashKey returns the stored form of a device bearer token.
func HashKey(key string) string {
	sum := sha3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// DeviceByKey looks up the active device owning key and records the access.
// last_seen_at is only written when the stored value is older than
// lastSeenInterval.
func DeviceByKey(db *gorm.DB, key string) (*Device, error) {
	var dev Device
	err := db.Where("key_hash = ? AND active = ?", HashKey(key), true).First(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownDevice
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if dev.LastSeenAt != nil && now.Sub(*dev.LastSeenAt) < lastSeenInterval {
		return &dev, nil
	}
	if err := db.Model(&dev).UpdateColumn("last_seen_at", now).Error; err != nil {
		return nil, err
	}
	dev.LastSeenAt = &now
	return &dev, nil
}

// CreateDevice registers a new device for key and returns it.
func CreateDevice(db *gorm.DB, name, key string, metadata map[string]any) (*Device, error) {
	dev := &Device{
		Name:     name,
		KeyHash:  HashKey(key),
		Active:   true,
		Metadata: metadata,
	}
	if err := db.Create(dev).Error; err != nil {
		return nil, err
	}
	return dev, nil
}
