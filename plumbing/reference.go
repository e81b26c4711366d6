package plumbing

import "strings"

const (
	refPrefix     = "refs/"
	refHeadPrefix = refPrefix + "heads/"
	refTagPrefix  = refPrefix + "tags/"
)

// ReferenceName reference name's.
type ReferenceName string

// HEAD is the name of the symbolic reference pointing at the current branch.
const HEAD ReferenceName = "HEAD"

func (r ReferenceName) String() string {
	return string(r)
}

// IsBranch checks if a reference is a branch.
func (r ReferenceName) IsBranch() bool {
	return strings.HasPrefix(string(r), refHeadPrefix)
}

// IsTag checks if a reference is a tag.
func (r ReferenceName) IsTag() bool {
	return strings.HasPrefix(string(r), refTagPrefix)
}

// Short returns the short name of a ReferenceName, removing the well-known
// prefixes.
func (r ReferenceName) Short() string {
	s := string(r)
	for _, p := range []string{refHeadPrefix, refTagPrefix, refPrefix} {
		if strings.HasPrefix(s, p) {
			return s[len(p):]
		}
	}
	return s
}

// Reference is an advertised (name, hash) pair.
type Reference struct {
	Name ReferenceName
	Hash Hash
}
