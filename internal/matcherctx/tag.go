package matcherctx

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Tag is the 8-byte magic discriminant folded into a little-endian u64.
// Each matcher program embeds exactly one expected tag at compile time.
type Tag uint64

// TagUninitialized is the all-zero magic of a never-initialized account.
const TagUninitialized Tag = 0

var (
	TagPrivacy    = MustTagFromString("PRIVMATC")
	TagVolatility = MustTagFromString("VOLMATCH")
	TagJPY        = MustTagFromString("JPYMATCH")
	TagEvent      = MustTagFromString("EVNTMATC")
)

func TagFromString(s string) (Tag, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("tag must be exactly 8 bytes, got %d", len(s))
	}
	return Tag(binary.LittleEndian.Uint64([]byte(s))), nil
}

func MustTagFromString(s string) Tag {
	tag, err := TagFromString(s)
	if err != nil {
		panic(err)
	}
	return tag
}

func (t Tag) Bytes() [8]byte {
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], uint64(t))
	return out
}

func (t Tag) String() string {
	raw := t.Bytes()
	for _, b := range raw {
		if b < 0x20 || b > 0x7e {
			return "0x" + strconv.FormatUint(uint64(t), 16)
		}
	}
	return string(raw[:])
}
