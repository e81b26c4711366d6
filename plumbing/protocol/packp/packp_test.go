package packp

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/format/pktline"
	"github.com/go-git/go-gitwire/plumbing/hash"
	"github.com/go-git/go-gitwire/plumbing/protocol/packp/capability"
)

var (
	hashA = plumbing.MustFromHex("1111111111111111111111111111111111111111")
	hashB = plumbing.MustFromHex("2222222222222222222222222222222222222222")
)

func TestAdvRefsEncode(t *testing.T) {
	ar := NewAdvRefs()
	h := hashA
	ar.Head = &h
	ar.Capabilities.Add(capability.OFSDelta)                     //nolint:errcheck
	ar.Capabilities.Add(capability.ObjectFormat, "sha1")         //nolint:errcheck
	ar.References = append(ar.References,
		plumbing.Reference{Name: "refs/heads/main", Hash: hashA},
		plumbing.Reference{Name: "refs/tags/v1", Hash: hashB},
	)

	var buf bytes.Buffer
	require.NoError(t, ar.Encode(&buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out,
		"004f"+hashA.String()+" HEAD\x00ofs-delta object-format=sha1\n"))
	assert.Contains(t, out, hashA.String()+" refs/heads/main\n")
	assert.Contains(t, out, hashB.String()+" refs/tags/v1\n")
	assert.True(t, strings.HasSuffix(out, "0000"))
}

func TestAdvRefsEncodeHTTPPrelude(t *testing.T) {
	ar := NewAdvRefs()
	ar.Service = "git-upload-pack"
	ar.HTTP = true

	var buf bytes.Buffer
	require.NoError(t, ar.Encode(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "001e# service=git-upload-pack\n0000"))
}

func TestAdvRefsEncodeEmptyRepository(t *testing.T) {
	ar := NewAdvRefs()

	var buf bytes.Buffer
	require.NoError(t, ar.Encode(&buf))
	assert.Contains(t, buf.String(),
		plumbing.ZeroHash.String()+" capabilities^{}\x00")
}

func TestAdvRefsEncodeRejectsFormatMismatch(t *testing.T) {
	ar := NewAdvRefs()
	ar.Format = hash.SHA256
	ar.References = append(ar.References,
		plumbing.Reference{Name: "refs/heads/main", Hash: hashA})

	var buf bytes.Buffer
	assert.ErrorIs(t, ar.Encode(&buf), ErrInvalidRequest)
}

func TestAdvRefsRoundtrip(t *testing.T) {
	ar := NewAdvRefs()
	h := hashA
	ar.Head = &h
	ar.Capabilities.Add(capability.Sideband64k)  //nolint:errcheck
	ar.References = append(ar.References,
		plumbing.Reference{Name: "refs/heads/main", Hash: hashA},
		plumbing.Reference{Name: "refs/heads/dev", Hash: hashB},
	)

	var buf bytes.Buffer
	require.NoError(t, ar.Encode(&buf))

	// Two consecutive advertisements of the same refs are byte-identical.
	var buf2 bytes.Buffer
	require.NoError(t, ar.Encode(&buf2))
	assert.Equal(t, buf.String(), buf2.String())

	got := NewAdvRefs()
	require.NoError(t, got.Decode(&buf))

	require.NotNil(t, got.Head)
	assert.Equal(t, hashA, *got.Head)
	assert.True(t, got.Capabilities.Supports(capability.Sideband64k))
	assert.ElementsMatch(t, ar.References, got.References)
}

func TestUploadPackRequestDecodeWantsOnly(t *testing.T) {
	var buf bytes.Buffer
	pktline.Writef(&buf, "want %s side-band-64k ofs-delta\n", hashA) //nolint:errcheck
	pktline.Writef(&buf, "want %s\n", hashB)                         //nolint:errcheck
	pktline.WriteFlush(&buf)                                         //nolint:errcheck
	pktline.WriteFlush(&buf)                                         //nolint:errcheck

	req := NewUploadPackRequest()
	require.NoError(t, req.Decode(&buf))

	assert.Equal(t, []plumbing.Hash{hashA, hashB}, req.Wants)
	assert.Empty(t, req.Haves)
	assert.False(t, req.Done)
	assert.True(t, req.Capabilities.Supports(capability.Sideband64k))
	assert.True(t, req.Capabilities.Supports(capability.OFSDelta))
}

func TestUploadPackRequestDecodeWithHaves(t *testing.T) {
	var buf bytes.Buffer
	pktline.Writef(&buf, "want %s\n", hashA) //nolint:errcheck
	pktline.WriteFlush(&buf)                 //nolint:errcheck
	pktline.Writef(&buf, "have %s\n", hashB) //nolint:errcheck
	pktline.WriteFlush(&buf)                 //nolint:errcheck
	pktline.WriteString(&buf, "done\n")      //nolint:errcheck

	req := NewUploadPackRequest()
	require.NoError(t, req.Decode(&buf))

	assert.Equal(t, []plumbing.Hash{hashA}, req.Wants)
	assert.Equal(t, []plumbing.Hash{hashB}, req.Haves)
	assert.True(t, req.Done)
}

func TestUploadPackRequestRejectsMixedHashKinds(t *testing.T) {
	sha256Hash := plumbing.MustFromHex(strings.Repeat("33", 32))

	var buf bytes.Buffer
	pktline.Writef(&buf, "want %s\n", hashA)      //nolint:errcheck
	pktline.Writef(&buf, "want %s\n", sha256Hash) //nolint:errcheck
	pktline.WriteFlush(&buf)                      //nolint:errcheck

	req := NewUploadPackRequest()
	assert.ErrorIs(t, req.Decode(&buf), ErrInvalidRequest)
}

func TestUploadPackRequestRoundtrip(t *testing.T) {
	req := NewUploadPackRequest()
	req.Capabilities.Add(capability.Sideband64k) //nolint:errcheck
	req.Wants = []plumbing.Hash{hashA}
	req.Haves = []plumbing.Hash{hashB}
	req.Done = true

	var buf bytes.Buffer
	require.NoError(t, req.Encode(&buf))

	got := NewUploadPackRequest()
	require.NoError(t, got.Decode(&buf))
	assert.Equal(t, req.Wants, got.Wants)
	assert.Equal(t, req.Haves, got.Haves)
	assert.True(t, got.Done)
}

func TestReferenceUpdateRequestDecode(t *testing.T) {
	var buf bytes.Buffer
	pktline.Writef(&buf, "%s %s refs/heads/feature\x00report-status side-band-64k\n",
		plumbing.ZeroHash, hashA) //nolint:errcheck
	pktline.Writef(&buf, "%s %s refs/tags/v1\n", hashB, plumbing.ZeroHash) //nolint:errcheck
	pktline.WriteFlush(&buf)                                               //nolint:errcheck
	buf.WriteString("PACKDATA")

	req := NewReferenceUpdateRequest()
	require.NoError(t, req.Decode(&buf))

	require.Len(t, req.Commands, 2)
	assert.Equal(t, Create, req.Commands[0].Action())
	assert.Equal(t, RefTypeBranch, req.Commands[0].RefType())
	assert.Equal(t, Delete, req.Commands[1].Action())
	assert.Equal(t, RefTypeTag, req.Commands[1].RefType())
	assert.True(t, req.Capabilities.Supports(capability.ReportStatus))

	rest, err := io.ReadAll(req.Packfile)
	require.NoError(t, err)
	assert.Equal(t, "PACKDATA", string(rest))
}

func TestReferenceUpdateRequestMissingFlush(t *testing.T) {
	var buf bytes.Buffer
	pktline.Writef(&buf, "%s %s refs/heads/feature\x00report-status\n",
		plumbing.ZeroHash, hashA) //nolint:errcheck

	req := NewReferenceUpdateRequest()
	assert.ErrorIs(t, req.Decode(&buf), ErrInvalidRequest)
}

func TestReferenceUpdateRequestEmptyCommands(t *testing.T) {
	var buf bytes.Buffer
	pktline.WriteFlush(&buf) //nolint:errcheck

	req := NewReferenceUpdateRequest()
	assert.ErrorIs(t, req.Decode(&buf), ErrEmptyCommands)
}

func TestReportStatusRoundtrip(t *testing.T) {
	rs := NewReportStatus()
	rs.UnpackStatus = "ok"
	rs.CommandStatuses = []*CommandStatus{
		{ReferenceName: "refs/heads/main", Status: "ok"},
		{ReferenceName: "refs/heads/broken", Status: "non-fast-forward"},
	}

	var buf bytes.Buffer
	require.NoError(t, rs.Encode(&buf))
	assert.Contains(t, buf.String(), "unpack ok\n")
	assert.Contains(t, buf.String(), "ok refs/heads/main\n")
	assert.Contains(t, buf.String(), "ng refs/heads/broken non-fast-forward\n")

	got := NewReportStatus()
	require.NoError(t, got.Decode(&buf))
	assert.Equal(t, "ok", got.UnpackStatus)
	require.Len(t, got.CommandStatuses, 2)
	assert.NoError(t, got.CommandStatuses[0].Error())
	assert.Error(t, got.CommandStatuses[1].Error())
	assert.Error(t, got.Error())
}
