package archive

import (
	_ "crypto/sha256" // registers the canonical digest algorithm
	"fmt"

	"github.com/dmitrijs2005/recdocs/internal/common"
	digest "github.com/opencontainers/go-digest"
)

// Hash returns the content hash of data in "sha256:<hex>" form.
func Hash(data []byte) string {
	return digest.FromBytes(data).String()
}

// Verify checks data against a declared hash.
//
// Hashes that are not valid digests (for example ones recorded by older
// clients) cannot be checked; Verify reports them with ok=false and no
// error so the caller can decide whether to trust them.
func Verify(declared string, data []byte) (ok bool, err error) {
	d, err := digest.Parse(declared)
	if err != nil {
		return false, nil
	}

	v := d.Verifier()
	if _, err := v.Write(data); err != nil {
		return false, fmt.Errorf("hash archive: %w", err)
	}
	if !v.Verified() {
		return false, fmt.Errorf("%w: declared %s, got %s", common.ErrHashMismatch, declared, d.Algorithm().FromBytes(data))
	}
	return true, nil
}
