// Package roomid generates memorable room ids and extracts them from room links.
package roomid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/BioHazard786/Warpcall/internal/call"
)

const (
	wordsPerID = 4
	maxLength  = 128
)

// Generate returns a random id of four words, e.g. "kitten-waffle-stardust-happy".
// Each word comes from a different pool.
func Generate() string {
	pools := [][]string{animals, dishes, names, randomWords, adjectives, extras}

	// Fisher-Yates over the pool indices, then take the first four.
	order := make([]int, len(pools))
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := randomIndex(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	words := make([]string, wordsPerID)
	for i := range words {
		pool := pools[order[i]]
		words[i] = pool[randomIndex(len(pool))]
	}
	return strings.Join(words, "-")
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(fmt.Sprintf("generate random index: %v", err))
	}
	return int(n.Int64())
}

// Parse accepts a bare room id or a room link such as
// https://warpcall.qzz.io/r/kitten-waffle-stardust-happy and returns the id.
func Parse(input string) (string, error) {
	s := strings.TrimSpace(input)
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", call.WrapError("parse room", call.ErrInvalidRoom, err.Error())
		}
		rest, ok := strings.CutPrefix(u.Path, "/r/")
		if !ok {
			return "", call.WrapError("parse room", call.ErrInvalidRoom, "link has no /r/ path")
		}
		s = strings.TrimSuffix(rest, "/")
	}

	if err := validate(s); err != nil {
		return "", err
	}
	return s, nil
}

func validate(id string) error {
	if id == "" {
		return call.WrapError("parse room", call.ErrInvalidRoom, "empty room id")
	}
	if len(id) > maxLength {
		return call.WrapError("parse room", call.ErrInvalidRoom, "room id too long")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return call.WrapError("parse room", call.ErrInvalidRoom, fmt.Sprintf("invalid character %q", r))
		}
	}
	return nil
}
