// Package capability defines the server and client capabilities negotiated
// during the advertised-refs exchange.
package capability

import (
	"fmt"
	"os"
)

// Capability describes a server or client capability.
type Capability string

func (n Capability) String() string {
	return string(n)
}

const (
	// MultiACK capability allows the server to return "ACK obj-id continue"
	// as soon as the server finds a commit that it can use as a common base.
	MultiACK Capability = "multi_ack"
	// MultiACKDetailed is an extension of multi_ack that permits the client
	// to better understand the server's in-memory state.
	MultiACKDetailed Capability = "multi_ack_detailed"
	// NoDone should only be used with the smart HTTP protocol: the server
	// can send the pack immediately after the first "done", saving a
	// round-trip.
	NoDone Capability = "no-done"
	// ThinPack means the server can send a thin pack, one containing deltas
	// against bases the receiver is assumed to already have.
	ThinPack Capability = "thin-pack"
	// Sideband means that the server can send, and the client understands,
	// multiplexed progress reports and error info interleaved with the
	// packfile itself, in packets no bigger than 1000 bytes.
	Sideband Capability = "side-band"
	// Sideband64k is like side-band, with packets up to 65520 bytes.
	Sideband64k Capability = "side-band-64k"
	// OFSDelta means the server can send, and the client understands,
	// offset deltas in the packfile.
	OFSDelta Capability = "ofs-delta"
	// Agent conveys the software name and version of the peer.
	Agent Capability = "agent"
	// ObjectFormat specifies the hash algorithm in use: sha1 or sha256.
	ObjectFormat Capability = "object-format"
	// SymRef communicates symbolic reference targets, e.g. HEAD:refs/heads/main.
	SymRef Capability = "symref"
	// Shallow makes the server accept shallow commit lines.
	Shallow Capability = "shallow"
	// DeepenSince makes the server accept deepen-since lines.
	DeepenSince Capability = "deepen-since"
	// DeepenNot makes the server accept deepen-not lines.
	DeepenNot Capability = "deepen-not"
	// IncludeTag lets the server send annotated tags that point into the
	// pack being transferred.
	IncludeTag Capability = "include-tag"
	// ReportStatus makes receive-pack send a status report after unpacking
	// and applying the reference updates.
	ReportStatus Capability = "report-status"
	// ReportStatusV2 extends report-status with option lines.
	ReportStatusV2 Capability = "report-status-v2"
	// DeleteRefs means receive-pack accepts zero new-hash values to delete
	// references.
	DeleteRefs Capability = "delete-refs"
	// Quiet suppresses progress information on the receiving side.
	Quiet Capability = "quiet"
	// Atomic means receive-pack applies all reference updates atomically.
	Atomic Capability = "atomic"
	// NoThin forbids the server from sending thin packs.
	NoThin Capability = "no-thin"
	// NoProgress means the client does not want progress messages.
	NoProgress Capability = "no-progress"
	// PushOptions means receive-pack accepts push option lines.
	PushOptions Capability = "push-options"
)

const userAgent = "go-gitwire/1.0.0"

// DefaultAgent returns the agent name, plus the content of the
// GITWIRE_USER_AGENT_EXTRA environment variable if set.
func DefaultAgent() string {
	if extra := os.Getenv("GITWIRE_USER_AGENT_EXTRA"); extra != "" {
		return fmt.Sprintf("%s %s", userAgent, extra)
	}
	return userAgent
}

// known is the set of capabilities this implementation recognizes; unknown
// capabilities are still carried verbatim.
var known = map[string]bool{
	string(MultiACK): true, string(MultiACKDetailed): true, string(NoDone): true,
	string(ThinPack): true, string(Sideband): true, string(Sideband64k): true,
	string(OFSDelta): true, string(Agent): true, string(ObjectFormat): true,
	string(SymRef): true, string(Shallow): true, string(DeepenSince): true,
	string(DeepenNot): true, string(IncludeTag): true, string(ReportStatus): true,
	string(ReportStatusV2): true, string(DeleteRefs): true, string(Quiet): true,
	string(Atomic): true, string(NoThin): true, string(NoProgress): true,
	string(PushOptions): true,
}

// requiresArgument is the set of capabilities that carry a value.
var requiresArgument = map[string]bool{
	string(Agent): true, string(ObjectFormat): true, string(SymRef): true,
}

// multipleArgument is the set of capabilities that may appear more than once.
var multipleArgument = map[string]bool{
	string(SymRef): true,
}
