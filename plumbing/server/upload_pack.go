package server

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/format/packfile"
	"github.com/go-git/go-gitwire/plumbing/format/pktline"
	"github.com/go-git/go-gitwire/plumbing/protocol/packp"
	"github.com/go-git/go-gitwire/plumbing/protocol/packp/capability"
	"github.com/go-git/go-gitwire/plumbing/protocol/packp/sideband"
	"github.com/go-git/go-gitwire/plumbing/revlist"
	"github.com/go-git/go-gitwire/utils/ioutil"
)

// UploadPack serves one fetch: it parses the want/have negotiation from r,
// answers with ACK/NAK pkt-lines and streams the resulting pack to w,
// side-band multiplexed when the client negotiated it.
func (s *Session) UploadPack(ctx context.Context, r io.Reader, w io.Writer) error {
	if err := s.checkAuth(); err != nil {
		return err
	}

	r = ioutil.NewContextReader(ctx, r)
	w = ioutil.NewContextWriter(ctx, w)

	req := packp.NewUploadPackRequest()
	if err := req.Decode(r); err != nil {
		return err
	}

	if len(req.Wants) == 0 {
		return fmt.Errorf("%w: no wants", packp.ErrInvalidRequest)
	}

	if req.Wants[0].Format() != s.format {
		return fmt.Errorf("%w: hash kind %s does not match session kind %s",
			packp.ErrInvalidRequest, req.Wants[0].Format(), s.format)
	}

	s.logger.Debug("upload-pack request",
		"wants", len(req.Wants), "haves", len(req.Haves), "caps", req.Capabilities.String())

	haves, err := s.negotiate(ctx, req, w)
	if err != nil {
		return err
	}

	return s.sendPack(ctx, req, haves, w)
}

// negotiate emits the ACK/NAK lines and returns the haves to subtract from
// the pack. With no common commit, a NAK is sent and the pack is full.
func (s *Session) negotiate(ctx context.Context, req *packp.UploadPackRequest, w io.Writer) ([]plumbing.Hash, error) {
	if len(req.Haves) == 0 {
		if _, err := pktline.WriteString(w, "NAK\n"); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var lastCommon plumbing.Hash
	var common []plumbing.Hash
	for _, h := range req.Haves {
		exists, err := s.storage.CommitExists(ctx, h)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}

		if _, err := pktline.Writef(w, "ACK %s common\n", h); err != nil {
			return nil, err
		}

		if lastCommon.IsZero() {
			lastCommon = h
		}
		common = append(common, h)
	}

	if lastCommon.IsZero() {
		if _, err := pktline.WriteString(w, "NAK\n"); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if _, err := pktline.Writef(w, "ACK %s ready\n", lastCommon); err != nil {
		return nil, err
	}

	return common, nil
}

// sendPack walks the object graph and streams the pack, through the
// side-band framer when negotiated. Object reads and pack encoding run as a
// two-stage pipeline over a bounded channel. The stream ends with a flush
// packet.
func (s *Session) sendPack(ctx context.Context, req *packp.UploadPackRequest, haves []plumbing.Hash, w io.Writer) error {
	hashes, err := revlist.Objects(ctx, s.storage, req.Wants, haves)
	if err != nil {
		return s.sendError(req, w, err)
	}

	packWriter, muxer := s.packWriter(req.Capabilities, w)

	if muxer != nil {
		msg := fmt.Sprintf("Enumerating objects: %d, done.\n", len(hashes))
		if _, err := muxer.WriteChannel(sideband.ProgressMessage, []byte(msg)); err != nil {
			return err
		}
	}

	opts := []packfile.EncoderOption{packfile.WithEncoderFormat(s.format)}
	if s.windowSet {
		opts = append(opts, packfile.WithWindowSize(s.windowSize))
	}

	buffer := s.channelBuffer
	if buffer <= 0 {
		buffer = defaultChannelBuffer
	}

	entries := make(chan packfile.Entry, buffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(entries)
		for _, h := range hashes {
			t, data, err := s.storage.ReadObjectRaw(gctx, h)
			if err != nil {
				return err
			}

			select {
			case entries <- packfile.Entry{Type: t, Data: data, Hash: h}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	e := packfile.NewEncoder(packWriter, opts...)
	var checksum plumbing.Hash
	g.Go(func() error {
		if err := e.WriteHeader(uint32(len(hashes))); err != nil {
			return err
		}

		for entry := range entries {
			if _, err := e.WriteEntry(entry); err != nil {
				return err
			}
		}

		var err error
		checksum, err = e.Footer()
		return err
	})

	if err := g.Wait(); err != nil {
		return s.sendError(req, w, err)
	}

	s.logger.Debug("packfile sent", "objects", len(hashes), "checksum", checksum.String())

	return pktline.WriteFlush(w)
}

// packWriter picks the pack byte sink: a side-band muxer when negotiated,
// the raw stream otherwise.
func (s *Session) packWriter(caps *capability.List, w io.Writer) (io.Writer, *sideband.Muxer) {
	var muxer *sideband.Muxer
	switch {
	case caps.Supports(capability.Sideband64k):
		muxer = sideband.NewMuxer(sideband.Sideband64k, w)
	case caps.Supports(capability.Sideband):
		muxer = sideband.NewMuxer(sideband.Sideband, w)
	default:
		return w, nil
	}

	return muxer, muxer
}

// sendError conveys a mid-stream error to the peer: side-band channel 3
// when negotiated, a final ERR pkt-line otherwise.
func (s *Session) sendError(req *packp.UploadPackRequest, w io.Writer, err error) error {
	s.logger.Error("upload-pack failed", "err", err)

	if _, muxer := s.packWriter(req.Capabilities, w); muxer != nil {
		muxer.WriteChannel(sideband.ErrorMessage, []byte(err.Error()+"\n")) //nolint:errcheck
	} else {
		pktline.WriteError(w, err) //nolint:errcheck
	}

	return err
}
