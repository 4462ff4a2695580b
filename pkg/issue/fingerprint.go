package issue

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/mash-protocol/base-station/pkg/wire"
)

// coordGridMeters is the rounding grid used before hashing a coordinate into
// a fingerprint, so two reports of the same physical issue a few centimeters
// apart dedup to the same entry (§4.3).
const coordGridMeters = 1.0

// Fingerprint derives the dedup key for an issue report: the first 64 bits
// (16 hex chars) of SHA-256(kind || rounded coordinate), mirroring the
// certificate-fingerprint scheme used elsewhere in this protocol family.
func Fingerprint(kind Kind, coord wire.Position) string {
	gx := math.Round(coord.X / coordGridMeters)
	gy := math.Round(coord.Y / coordGridMeters)
	gz := math.Round(coord.Z / coordGridMeters)

	input := fmt.Sprintf("%s|%.0f|%.0f|%.0f", kind, gx, gy, gz)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}
