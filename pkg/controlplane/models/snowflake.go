package models

import "math"

// Platform ids are unsigned 64-bit snowflakes, but Postgres has no unsigned
// bigint. Ids are therefore limited to the signed range, which a snowflake
// only leaves once its timestamp passes the year 2084.
const (
	// SnowflakeBits is the bitSize to pass to strconv.ParseUint for ids.
	SnowflakeBits = 63
	// MaxSnowflake is the largest id that can be stored.
	MaxSnowflake uint64 = math.MaxInt64
)

// ValidSnowflake reports whether id is set and storable.
func ValidSnowflake(id uint64) bool {
	return id != 0 && id <= MaxSnowflake
}
