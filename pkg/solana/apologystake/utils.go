package apologystake

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

const discriminatorSize = 8

// anchorDiscriminator returns the first 8 bytes of sha256("<namespace>:<name>")
func anchorDiscriminator(namespace, name string) []byte {
	h := sha256.Sum256([]byte(namespace + ":" + name))
	return h[:discriminatorSize]
}

func putDiscriminator(dst []byte, v []byte, offset *int) {
	copy(dst[*offset:], v)
	*offset += discriminatorSize
}

func getDiscriminator(src []byte, dst *[]byte, offset *int) {
	*dst = make([]byte, discriminatorSize)
	copy(*dst, src[*offset:])
	*offset += discriminatorSize
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
