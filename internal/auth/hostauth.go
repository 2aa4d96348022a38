package auth

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strings"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"
)

var (
	ErrUserLocked      = errors.New("account is locked")
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

// HostAuthenticator verifies against the host's shadow database instead of
// the credential store. Supported crypt formats: $1$ (md5-crypt), $5$
// (sha256-crypt), $6$ (sha512-crypt). Newer formats such as yescrypt are
// rejected as unsupported.
type HostAuthenticator struct {
	shadowPath string
	passwdPath string
}

func NewHostAuthenticator(shadowPath, passwdPath string) *HostAuthenticator {
	return &HostAuthenticator{shadowPath: shadowPath, passwdPath: passwdPath}
}

func (a *HostAuthenticator) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	hash, err := a.lookupShadowHash(username)
	if err != nil {
		return nil, err
	}
	if hash == "" || strings.HasPrefix(hash, "!") || strings.HasPrefix(hash, "*") {
		return nil, ErrUserLocked
	}
	ok, err := verifyCrypt(hash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return &Identity{Username: username}, nil
}

// Exists consults the passwd database, which unlike shadow is readable
// without privilege.
func (a *HostAuthenticator) Exists(ctx context.Context, username string) (bool, error) {
	f, err := os.Open(a.passwdPath)
	if err != nil {
		return false, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, _, ok := strings.Cut(line, ":"); ok && name == username {
			return true, nil
		}
	}
	return false, sc.Err()
}

func (a *HostAuthenticator) lookupShadowHash(username string) (string, error) {
	f, err := os.Open(a.shadowPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 2 {
			continue
		}
		if fields[0] == username {
			return fields[1], nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", ErrInvalidCredentials
}

func verifyCrypt(hash, password string) (bool, error) {
	crypters := []crypt.Crypter{sha512_crypt.New(), sha256_crypt.New(), md5_crypt.New()}
	for _, c := range crypters {
		if err := c.Verify(hash, []byte(password)); err == nil {
			return true, nil
		}
	}
	if strings.HasPrefix(hash, "$y$") || strings.HasPrefix(hash, "$7$") || strings.HasPrefix(hash, "$2") {
		return false, ErrUnsupportedHash
	}
	return false, nil
}
