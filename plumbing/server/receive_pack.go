package server

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/format/packfile"
	"github.com/go-git/go-gitwire/plumbing/format/pktline"
	"github.com/go-git/go-gitwire/plumbing/protocol/packp"
	"github.com/go-git/go-gitwire/plumbing/protocol/packp/capability"
	"github.com/go-git/go-gitwire/utils/ioutil"
)

// ReceivePack serves one push: it parses the ref commands and the pack
// bytes from r, stores the decoded objects and applies the updates through
// the host, and emits the status report to w.
//
// The handling runs as a state machine:
//
//	Start -> ReadingCommands -> ReadingPack -> DecodingPack ->
//	ApplyingRefs -> EmittingReport -> Done
//
// Any state may fail on I/O error, malformed input or host error.
// Capabilities are parsed while reading the first command line.
func (s *Session) ReceivePack(ctx context.Context, r io.Reader, w io.Writer) error {
	if err := s.checkAuth(); err != nil {
		return err
	}

	rp := &receivePack{
		session: s,
		ctx:     ctx,
		r:       bufio.NewReader(ioutil.NewContextReader(ctx, r)),
		w:       ioutil.NewContextWriter(ctx, w),
	}

	var err error
	for state := rpReadingCommands; state != nil; {
		state, err = state(rp)
		if err != nil {
			return err
		}
	}

	return nil
}

// receivePack holds the state of one push session.
type receivePack struct {
	session *Session
	ctx     context.Context
	r       *bufio.Reader
	w       io.Writer

	req     *packp.ReferenceUpdateRequest
	results []*refResult
	unpack  error

	// defaultBranch is the ref of the first successful branch command of a
	// push into a repository that had no default branch before it.
	defaultBranch plumbing.ReferenceName

	commits []packfile.Entry
	trees   []packfile.Entry
	blobs   []packfile.Entry
}

// refResult is the outcome of one ref command: its error if it failed.
type refResult struct {
	cmd *packp.Command
	err error
}

// rpStateFn is one state of the receive-pack machine. States chain by
// returning the next state; a nil state ends the machine.
type rpStateFn func(*receivePack) (rpStateFn, error)

// rpReadingCommands parses the command list and the capability tail of its
// first line.
func rpReadingCommands(rp *receivePack) (rpStateFn, error) {
	req := packp.NewReferenceUpdateRequest()
	if err := req.Decode(rp.r); err != nil {
		return nil, err
	}

	for _, cmd := range req.Commands {
		nonZero := cmd.New
		if nonZero.IsZero() {
			nonZero = cmd.Old
		}
		if nonZero.Format() != rp.session.format {
			return nil, packp.ErrInvalidRequest
		}
	}

	rp.req = req
	rp.session.logger.Debug("receive-pack request",
		"commands", len(req.Commands), "caps", req.Capabilities.String())

	return rpReadingPack, nil
}

// rpReadingPack decides whether pack bytes follow the command list. A
// delete-only push carries none.
func rpReadingPack(rp *receivePack) (rpStateFn, error) {
	if _, err := rp.r.Peek(1); err == io.EOF {
		return rpApplyingRefs, nil
	} else if err != nil {
		return nil, err
	}

	return rpDecodingPack, nil
}

// rpDecodingPack decodes the pack and hands the objects to the host. Unpack
// and storage failures are remembered for the status report; they fail
// every command without aborting the session.
func rpDecodingPack(rp *receivePack) (rpStateFn, error) {
	s := rp.session

	opts := []packfile.DecoderOption{
		packfile.WithObjectFormat(s.format),
		packfile.WithWorkers(s.workers),
		packfile.WithEntryObserver(rp.collectEntry),
	}
	if s.memLimit > 0 {
		opts = append(opts, packfile.WithMemLimit(s.memLimit))
	}
	if s.cacheFS != nil {
		opts = append(opts, packfile.WithSpillCache(s.cacheFS, s.cleanCache))
	}

	d := packfile.NewDecoder(rp.r, opts...)
	if _, err := d.Decode(rp.ctx); err != nil {
		rp.unpack = err
		return rpApplyingRefs, nil
	}

	if err := s.storage.WriteObjects(rp.ctx, rp.commits, rp.trees, rp.blobs); err != nil {
		rp.unpack = err
		return rpApplyingRefs, nil
	}

	s.logger.Debug("pack unpacked",
		"commits", len(rp.commits), "trees", len(rp.trees), "blobs", len(rp.blobs))

	return rpApplyingRefs, nil
}

func (rp *receivePack) collectEntry(e packfile.Entry, _ packfile.EntryMeta) error {
	switch e.Type {
	case plumbing.CommitObject:
		rp.commits = append(rp.commits, e)
	case plumbing.TreeObject:
		rp.trees = append(rp.trees, e)
	default:
		rp.blobs = append(rp.blobs, e)
	}
	return nil
}

// rpApplyingRefs applies the commands in the order the client listed them.
// Host errors are captured per command; sibling commands still run. After a
// failed unpack no ref is touched.
func rpApplyingRefs(rp *receivePack) (rpStateFn, error) {
	s := rp.session

	defaultExists, err := s.storage.HasDefaultBranch(rp.ctx)
	if err != nil {
		return nil, err
	}

	for _, cmd := range rp.req.Commands {
		res := &refResult{cmd: cmd}
		rp.results = append(rp.results, res)

		if rp.unpack != nil {
			res.err = rp.unpack
			continue
		}

		res.err = rp.applyCommand(cmd)

		// The first successful branch command of a repository without a
		// default branch is recorded as its default and logged. It is not
		// passed to the host; the repository gets a default branch only if
		// its own UpdateReference sets one.
		if res.err == nil && !defaultExists && cmd.RefType() == packp.RefTypeBranch {
			rp.defaultBranch = cmd.Name
			defaultExists = true
		}
	}

	if rp.defaultBranch != "" {
		s.logger.Info("default branch set", "ref", rp.defaultBranch.String())
	}

	// The hook runs after all commands have been processed, even if some
	// failed, and before the report is emitted.
	if err := s.storage.PostReceiveHook(rp.ctx); err != nil {
		return nil, err
	}

	return rpEmittingReport, nil
}

func (rp *receivePack) applyCommand(cmd *packp.Command) error {
	ctx, storage := rp.ctx, rp.session.storage

	switch cmd.Action() {
	case packp.Delete:
		if cmd.Old.IsZero() {
			return nil // nothing to delete
		}
		old := cmd.Old
		return storage.UpdateReference(ctx, cmd.Name, &old, cmd.New)
	case packp.Create:
		return storage.UpdateReference(ctx, cmd.Name, nil, cmd.New)
	default:
		old := cmd.Old
		return storage.UpdateReference(ctx, cmd.Name, &old, cmd.New)
	}
}

// rpEmittingReport writes the status report, wrapped in channel-1 side-band
// packets when negotiated. Without report-status the report is skipped.
func rpEmittingReport(rp *receivePack) (rpStateFn, error) {
	caps := rp.req.Capabilities
	if !caps.Supports(capability.ReportStatus) && !caps.Supports(capability.ReportStatusV2) {
		return nil, rp.unpack
	}

	report := packp.NewReportStatus()
	report.UnpackStatus = "ok"
	if rp.unpack != nil {
		report.UnpackStatus = rp.unpack.Error()
	}

	for _, res := range rp.results {
		status := "ok"
		if res.err != nil {
			status = res.err.Error()
		}
		report.CommandStatuses = append(report.CommandStatuses, &packp.CommandStatus{
			ReferenceName: res.cmd.Name,
			Status:        status,
		})
	}

	_, muxer := rp.session.packWriter(caps, rp.w)

	if muxer != nil {
		// The report is banded as one channel-1 payload, and the banded
		// stream is itself terminated by an unbanded flush.
		var banded bytes.Buffer
		if err := report.Encode(&banded); err != nil {
			return nil, err
		}

		if _, err := muxer.Write(banded.Bytes()); err != nil {
			return nil, err
		}

		return nil, pktline.WriteFlush(rp.w)
	}

	return nil, report.Encode(rp.w)
}
