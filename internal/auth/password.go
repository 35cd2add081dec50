package auth

import "golang.org/x/crypto/bcrypt"

// BcryptHasher はbcryptによるパスワードハッシュ。
type BcryptHasher struct {
	Cost int // 0の場合はbcrypt.DefaultCost
}

// Hash はパスワードのハッシュを返す。
func (b BcryptHasher) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify はハッシュとパスワードが一致するかを返す。
func (b BcryptHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
