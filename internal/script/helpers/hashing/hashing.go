// Package hashing registers the hashing/anonymization helper contract of
// spec.md §4.3: bucket(s), hash(s, algo), anonymize(s), pseudonym(s[, n]).
//
// anonymize/pseudonym both need a process-scoped secret (spec.md: "missing
// secret ⇒ fatal with a suggestion message"). No repo in the corpus
// imports blake3, so pseudonym is built on crypto/sha256 (already the
// stdlib primitive anonymize uses) rather than pulling in a dependency
// nothing else in the system would exercise; see DESIGN.md.
package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"kelora/internal/script"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Secrets holds the process-scoped secret required by anonymize/pseudonym
// (spec.md §4.3); an empty Secret means those helpers fail fatally.
type Secrets struct {
	Secret string
}

func Factory(secrets Secrets) script.HelperFactory {
	return func(eng *script.Engine) []cel.EnvOption {
		return []cel.EnvOption{
			cel.Function("bucket",
				cel.Overload("bucket_string", []*cel.Type{cel.StringType}, cel.IntType,
					cel.UnaryBinding(bucketFn))),
			cel.Function("hash",
				cel.Overload("hash_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.StringType,
					cel.BinaryBinding(hashFn))),
			cel.Function("anonymize",
				cel.Overload("anonymize_string", []*cel.Type{cel.StringType}, cel.StringType,
					cel.UnaryBinding(anonymizeFn(secrets)))),
			cel.Function("pseudonym",
				cel.Overload("pseudonym_string", []*cel.Type{cel.StringType}, cel.StringType,
					cel.UnaryBinding(func(s ref.Val) ref.Val { return pseudonymFn(secrets, s, 10) })),
				cel.Overload("pseudonym_string_int", []*cel.Type{cel.StringType, cel.IntType}, cel.StringType,
					cel.BinaryBinding(func(s, n ref.Val) ref.Val {
						length, ok := n.Value().(int64)
						if !ok {
							return types.NewErr("pseudonym: length must be an int")
						}
						return pseudonymFn(secrets, s, int(length))
					}))),
		}
	}
}

func bucketFn(s ref.Val) ref.Val {
	str, ok := s.Value().(string)
	if !ok {
		return types.NewErr("bucket: expected a string")
	}
	return types.Int(int64(xxhash.Sum64String(str)))
}

func hashFn(s, algo ref.Val) ref.Val {
	str, ok := s.Value().(string)
	if !ok {
		return types.NewErr("hash: expected a string")
	}
	alg, _ := algo.Value().(string)
	switch strings.ToLower(alg) {
	case "md5":
		sum := md5.Sum([]byte(str))
		return types.String(hex.EncodeToString(sum[:]))
	case "sha1":
		sum := sha1.Sum([]byte(str))
		return types.String(hex.EncodeToString(sum[:]))
	case "sha256", "":
		sum := sha256.Sum256([]byte(str))
		return types.String(hex.EncodeToString(sum[:]))
	case "xxhash":
		return types.String(hex.EncodeToString(xxhashBytes(str)))
	default:
		return types.NewErr("hash: unsupported algorithm %q", alg)
	}
}

func xxhashBytes(s string) []byte {
	h := xxhash.Sum64String(s)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(h >> (8 * (7 - i)))
	}
	return b
}

func anonymizeFn(secrets Secrets) func(ref.Val) ref.Val {
	return func(s ref.Val) ref.Val {
		if secrets.Secret == "" {
			return types.NewErr("anonymize: no process secret configured; set --secret or KELORA_SECRET to use anonymize()/pseudonym()")
		}
		str, ok := s.Value().(string)
		if !ok {
			return types.NewErr("anonymize: expected a string")
		}
		sum := sha256.Sum256([]byte(secrets.Secret + str))
		return types.String(hex.EncodeToString(sum[:]))
	}
}

func pseudonymFn(secrets Secrets, s ref.Val, length int) ref.Val {
	if secrets.Secret == "" {
		return types.NewErr("pseudonym: no process secret configured; set --secret or KELORA_SECRET to use anonymize()/pseudonym()")
	}
	str, ok := s.Value().(string)
	if !ok {
		return types.NewErr("pseudonym: expected a string")
	}
	sum := sha256.Sum256([]byte(secrets.Secret + str))
	return types.String(base62Encode(sum[:], length))
}

func base62Encode(b []byte, length int) string {
	// Treat the digest as a big-endian unsigned integer and repeatedly
	// divide by 62, which is enough entropy spread to fill any requested
	// prefix length without biasing toward the alphabet's early symbols.
	digits := make([]byte, 0, length)
	num := append([]byte(nil), b...)
	for len(digits) < length {
		rem := 0
		allZero := true
		for i, d := range num {
			cur := rem*256 + int(d)
			num[i] = byte(cur / 62)
			rem = cur % 62
			if num[i] != 0 {
				allZero = false
			}
		}
		digits = append(digits, base62Alphabet[rem])
		if allZero {
			// Ran out of entropy in the digest; fold in a simple mix of
			// what's been produced so far rather than emitting zeros.
			mixed := xxhash.Sum64(digits)
			for len(digits) < length {
				digits = append(digits, base62Alphabet[mixed%62])
				mixed /= 62
				if mixed == 0 {
					mixed = xxhash.Sum64(digits)
				}
			}
			break
		}
	}
	if len(digits) > length {
		digits = digits[:length]
	}
	return string(digits)
}
