// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2idAlgorithm is the PHC algorithm identifier written into every StoredHash.
const Argon2idAlgorithm = "argon2id"

// Bounds applied to parameters, both when constructing a hasher and when
// decoding a stored hash. A stored hash outside them fails to verify, so a
// corrupted row costs at most maxMemoryKiB per concurrent hash slot.
const (
	minSaltLen   = 16
	minKeyLen    = 16
	maxKeyLen    = 1024
	maxTime      = 10
	maxMemoryKiB = 256 * 1024
	maxThreads   = 64
)

// Argon2Params are the Argon2id cost parameters.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8  // parallelism
	SaltLen uint32 // bytes
	KeyLen  uint32 // bytes
}

// DefaultArgon2Params are the OWASP-recommended argon2id parameters used for
// every new hash. Changing them does not invalidate existing hashes: each
// StoredHash carries the parameters it was made with.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// Validate reports whether the parameters are usable.
func (p Argon2Params) Validate() error {
	if err := p.check(); err != nil {
		return oops.Code("AUTH_HASH_PARAMS_INVALID").
			With("time", p.Time).
			With("memory", p.Memory).
			With("threads", p.Threads).
			Wrap(err)
	}
	return nil
}

func (p Argon2Params) check() error {
	switch {
	case p.Time < 1 || p.Time > maxTime:
		return fmt.Errorf("time cost %d out of range [1, %d]", p.Time, maxTime)
	case p.Threads < 1 || p.Threads > maxThreads:
		return fmt.Errorf("parallelism %d out of range [1, %d]", p.Threads, maxThreads)
	case p.Memory < 8*uint32(p.Threads) || p.Memory > maxMemoryKiB:
		return fmt.Errorf("memory cost %d KiB out of range [%d, %d]", p.Memory, 8*uint32(p.Threads), maxMemoryKiB)
	case p.SaltLen < minSaltLen:
		return fmt.Errorf("salt length %d below minimum %d", p.SaltLen, minSaltLen)
	case p.KeyLen < minKeyLen || p.KeyLen > maxKeyLen:
		return fmt.Errorf("key length %d out of range [%d, %d]", p.KeyLen, minKeyLen, maxKeyLen)
	}
	return nil
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an encoded StoredHash of the password with a fresh salt.
	Hash(password string) string

	// Verify reports whether the password matches the encoded hash.
	// Malformed input is a mismatch, never an error.
	Verify(password, encoded string) bool

	// NeedsUpgrade reports whether the encoded hash was made with parameters
	// other than the hasher's current ones.
	NeedsUpgrade(encoded string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher with DefaultArgon2Params.
func NewArgon2idHasher() (*Argon2idHasher, error) {
	return NewArgon2idHasherWithParams(DefaultArgon2Params)
}

// NewArgon2idHasherWithParams creates a hasher with explicit parameters.
// An error here is a configuration error and should abort startup.
func NewArgon2idHasherWithParams(params Argon2Params) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Params returns the parameters used for new hashes.
func (h *Argon2idHasher) Params() Argon2Params {
	return h.params
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) string {
	salt := make([]byte, h.params.SaltLen)
	// crypto/rand.Read never returns an error; a broken entropy source aborts the process.
	_, _ = rand.Read(salt)

	digest := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return StoredHash{
		Algorithm: Argon2idAlgorithm,
		Version:   argon2.Version,
		Memory:    h.params.Memory,
		Time:      h.params.Time,
		Threads:   h.params.Threads,
		Salt:      salt,
		Digest:    digest,
	}.String()
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(password, encoded string) bool {
	stored, err := ParseStoredHash(encoded)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(password), stored.Salt, stored.Time, stored.Memory, stored.Threads, uint32(len(stored.Digest)))
	return subtle.ConstantTimeCompare(computed, stored.Digest) == 1
}

// NeedsUpgrade returns true if the hash is unreadable or was made with other parameters.
func (h *Argon2idHasher) NeedsUpgrade(encoded string) bool {
	stored, err := ParseStoredHash(encoded)
	if err != nil {
		return true
	}
	return stored.Memory != h.params.Memory ||
		stored.Time != h.params.Time ||
		stored.Threads != h.params.Threads ||
		uint32(len(stored.Salt)) < h.params.SaltLen ||
		uint32(len(stored.Digest)) != h.params.KeyLen
}

// StoredHash is a decoded PHC string:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<digest>
//
// Salt and digest use unpadded standard base64.
type StoredHash struct {
	Algorithm string
	Version   int
	Memory    uint32
	Time      uint32
	Threads   uint8
	Salt      []byte
	Digest    []byte
}

// String encodes the hash in PHC format.
func (s StoredHash) String() string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		s.Algorithm,
		s.Version,
		s.Memory,
		s.Time,
		s.Threads,
		base64.RawStdEncoding.EncodeToString(s.Salt),
		base64.RawStdEncoding.EncodeToString(s.Digest),
	)
}

// ParseStoredHash decodes a PHC-formatted argon2id hash. Only the canonical
// encoding is accepted, so ParseStoredHash(s).String() == s for every s that parses.
func ParseStoredHash(encoded string) (StoredHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return StoredHash{}, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != Argon2idAlgorithm {
		return StoredHash{}, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return StoredHash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return StoredHash{}, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return StoredHash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	// Validate threads fits in uint8 to prevent silent truncation
	if threads < 1 || threads > 255 {
		return StoredHash{}, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return StoredHash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	digest, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return StoredHash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	params := Argon2Params{
		Time:    time,
		Memory:  memory,
		Threads: uint8(threads),
		SaltLen: uint32(len(salt)),
		KeyLen:  uint32(len(digest)),
	}
	if err := params.check(); err != nil {
		return StoredHash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	stored := StoredHash{
		Algorithm: Argon2idAlgorithm,
		Version:   version,
		Memory:    memory,
		Time:      time,
		Threads:   uint8(threads),
		Salt:      salt,
		Digest:    digest,
	}

	// Sscanf tolerates leading zeros and trailing input; re-encoding catches both.
	if stored.String() != encoded {
		return StoredHash{}, oops.Code("AUTH_INVALID_HASH").Errorf("hash is not in canonical form")
	}

	return stored, nil
}
