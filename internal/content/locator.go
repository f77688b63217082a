package content

import (
	"strings"

	"github.com/ipfs/go-cid"
)

// NormalizeLocator trims a locator, drops ipfs:// and /ipfs/ prefixes and
// returns the canonical CID string when the remainder decodes as one. Anything
// else is returned trimmed and otherwise untouched.
func NormalizeLocator(raw string) string {
	loc := strings.TrimSpace(raw)
	loc = strings.TrimPrefix(loc, "ipfs://")
	loc = strings.TrimPrefix(loc, "/ipfs/")
	loc = strings.Trim(loc, "/")

	// Keep any path below the root CID.
	root, rest, hasPath := strings.Cut(loc, "/")
	c, err := cid.Decode(root)
	if err != nil {
		return loc
	}
	if hasPath {
		return c.String() + "/" + rest
	}
	return c.String()
}

// IsCID reports whether the locator's root decodes as a CID.
func IsCID(locator string) bool {
	root, _, _ := strings.Cut(NormalizeLocator(locator), "/")
	_, err := cid.Decode(root)
	return err == nil
}
