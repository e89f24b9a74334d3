package account

import "golang.org/x/crypto/bcrypt"

type bcryptHasher struct {
	cost    int
	compare func(hash, password []byte) error
	// dummy is a hash at the configured cost, compared against when the
	// account does not exist so both login failures cost one bcrypt round.
	dummy []byte
}

func newBcryptHasher(cost int) bcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("prism-absent-account"), cost)
	if err != nil {
		dummy = nil
	}
	return bcryptHasher{cost: cost, compare: bcrypt.CompareHashAndPassword, dummy: dummy}
}

func (h bcryptHasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether password matches hash. Malformed hashes never match.
func (h bcryptHasher) Verify(hash, password string) bool {
	return h.compare([]byte(hash), []byte(password)) == nil
}

// VerifyAbsent spends the same work as Verify and always fails.
func (h bcryptHasher) VerifyAbsent(password string) bool {
	_ = h.compare(h.dummy, []byte(password))
	return false
}
