// Package credentials generates random hostnames and passwords for newly
// provisioned servers. All randomness comes from crypto/rand; the upstream
// panel stores these as live root credentials.
package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits    = "0123456789"
	symbols   = "@#$%&"

	letters = uppercase + lowercase

	hostnameSuffix = ".com"
)

// DefaultHostnameLength and DefaultPasswordLength match what the admin panel
// accepts without complaint.
const (
	DefaultHostnameLength = 15
	DefaultPasswordLength = 12
)

// RandomHostname returns a hostname of length random letters (A-Z, a-z only,
// no digits or hyphens) followed by a fixed ".com" suffix.
func RandomHostname(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("hostname length must be positive, got %d", length)
	}

	buf := make([]byte, 0, length+len(hostnameSuffix))
	for i := 0; i < length; i++ {
		c, err := pick(letters)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	return string(buf) + hostnameSuffix, nil
}

// StrongPassword returns a password of exactly length characters containing
// at least one lowercase letter, one uppercase letter, one digit and one
// symbol from "@#$%&". The guaranteed characters are shuffled into random
// positions so they cannot be predicted from the layout.
func StrongPassword(length int) (string, error) {
	if length < 4 {
		return "", fmt.Errorf("password length must be at least 4 to satisfy complexity requirements, got %d", length)
	}

	buf := make([]byte, 0, length)
	for _, class := range []string{lowercase, uppercase, digits, symbols} {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	all := lowercase + uppercase + digits + symbols
	for i := len(buf); i < length; i++ {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates with a secure bounded integer, not math/rand.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

func pick(alphabet string) (byte, error) {
	i, err := randomInt(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[i], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read secure random: %w", err)
	}
	return int(v.Int64()), nil
}
